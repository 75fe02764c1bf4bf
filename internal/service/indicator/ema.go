package indicator

import "math"

// EMA is an incrementally-updated exponential moving average. The first
// period-1 points are undefined (NaN); the value at period-1 is seeded with
// the simple average of the first period inputs, after which the standard
// smoothing constant k = 2/(period+1) applies.
//
// One level of undo state is kept so the most recent point can be recomputed
// in place when the current partial bar mutates.
type EMA struct {
	period int
	k      float64

	count   int
	seedSum float64
	value   float64

	prevCount   int
	prevSeedSum float64
	prevValue   float64
}

func NewEMA(period int) *EMA {
	if period <= 0 {
		period = 1
	}
	return &EMA{period: period, k: 2.0 / float64(period+1), value: math.NaN(), prevValue: math.NaN()}
}

func (e *EMA) Period() int { return e.period }

// Append feeds the next input and returns the EMA value for it (NaN while
// there is insufficient history).
func (e *EMA) Append(v float64) float64 {
	e.prevCount, e.prevSeedSum, e.prevValue = e.count, e.seedSum, e.value

	e.count++
	if e.count < e.period {
		e.seedSum += v
		e.value = math.NaN()
		return e.value
	}
	if e.count == e.period {
		e.seedSum += v
		e.value = e.seedSum / float64(e.period)
		return e.value
	}
	e.value = e.value + e.k*(v-e.value)
	return e.value
}

// UpdateLast recomputes the most recent point from a replacement input.
// Only valid after at least one Append.
func (e *EMA) UpdateLast(v float64) float64 {
	e.count, e.seedSum, e.value = e.prevCount, e.prevSeedSum, e.prevValue
	return e.Append(v)
}

// Value returns the current EMA (NaN if undefined).
func (e *EMA) Value() float64 { return e.value }

// Defined reports whether enough inputs have been seen.
func (e *EMA) Defined() bool { return e.count >= e.period }

// Reset discards all state.
func (e *EMA) Reset() {
	e.count, e.seedSum, e.value = 0, 0, math.NaN()
	e.prevCount, e.prevSeedSum, e.prevValue = 0, 0, math.NaN()
}

// SMA is an incrementally-updated simple moving average over a fixed window.
type SMA struct {
	period int
	window []float64
	sum    float64
}

func NewSMA(period int) *SMA {
	if period <= 0 {
		period = 1
	}
	return &SMA{period: period}
}

// Append feeds the next input and returns the SMA (NaN while the window is
// not yet full).
func (s *SMA) Append(v float64) float64 {
	if len(s.window) == s.period {
		s.sum -= s.window[0]
		s.window = s.window[1:]
	}
	s.window = append(s.window, v)
	s.sum += v
	return s.Value()
}

// UpdateLast replaces the most recent input and returns the recomputed SMA.
func (s *SMA) UpdateLast(v float64) float64 {
	if len(s.window) == 0 {
		return math.NaN()
	}
	last := s.window[len(s.window)-1]
	s.sum += v - last
	s.window[len(s.window)-1] = v
	return s.Value()
}

// Value returns the current SMA (NaN if the window is not full).
func (s *SMA) Value() float64 {
	if len(s.window) < s.period {
		return math.NaN()
	}
	return s.sum / float64(s.period)
}

// Reset discards all state.
func (s *SMA) Reset() {
	s.window = nil
	s.sum = 0
}
