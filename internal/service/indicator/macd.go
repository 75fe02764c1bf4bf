package indicator

import "math"

// MACD maintains the full MACD triple over a close-price series.
//
//	line      = EMA(fast) - EMA(slow), defined only where both are defined
//	signal    = EMA(signalPeriod) over the defined portion of the line,
//	            left-padded with NaN to keep indices aligned with the series
//	histogram = line - signal where both are defined
//
// Recomputation policy: Compute rebuilds everything on a structural reset,
// Append extends by one point when a bar closes, UpdateLast recomputes only
// the final point while the current partial bar mutates.
type MACD struct {
	fast   *EMA
	slow   *EMA
	sig    *EMA
	sigFed bool // whether the last Append fed the signal EMA

	line      []float64
	signal    []float64
	histogram []float64
}

func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	if fastPeriod <= 0 {
		fastPeriod = 12
	}
	if slowPeriod <= 0 {
		slowPeriod = 26
	}
	if signalPeriod <= 0 {
		signalPeriod = 9
	}
	return &MACD{
		fast: NewEMA(fastPeriod),
		slow: NewEMA(slowPeriod),
		sig:  NewEMA(signalPeriod),
	}
}

// Compute discards all state and rebuilds from the full close series.
func (m *MACD) Compute(closes []float64) {
	m.fast.Reset()
	m.slow.Reset()
	m.sig.Reset()
	m.line = m.line[:0]
	m.signal = m.signal[:0]
	m.histogram = m.histogram[:0]
	for _, c := range closes {
		m.Append(c)
	}
}

// Append extends all three lines by one point for a newly closed bar.
func (m *MACD) Append(close float64) {
	fv := m.fast.Append(close)
	sv := m.slow.Append(close)

	line := math.NaN()
	if !math.IsNaN(fv) && !math.IsNaN(sv) {
		line = fv - sv
	}

	sig := math.NaN()
	m.sigFed = false
	if !math.IsNaN(line) {
		sig = m.sig.Append(line)
		m.sigFed = true
	}

	m.line = append(m.line, line)
	m.signal = append(m.signal, sig)
	m.histogram = append(m.histogram, line-sig)
}

// UpdateLast recomputes only the final point from a replacement close.
// Only valid after at least one Append.
func (m *MACD) UpdateLast(close float64) {
	if len(m.line) == 0 {
		return
	}
	fv := m.fast.UpdateLast(close)
	sv := m.slow.UpdateLast(close)

	line := math.NaN()
	if !math.IsNaN(fv) && !math.IsNaN(sv) {
		line = fv - sv
	}

	sig := math.NaN()
	if m.sigFed {
		sig = m.sig.UpdateLast(line)
	}

	idx := len(m.line) - 1
	m.line[idx] = line
	m.signal[idx] = sig
	m.histogram[idx] = line - sig
}

// Len returns the number of points computed so far.
func (m *MACD) Len() int { return len(m.line) }

// Last returns the most recent (line, signal, histogram) triple; NaN where
// undefined.
func (m *MACD) Last() (line, signal, histogram float64) {
	if len(m.line) == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	idx := len(m.line) - 1
	return m.line[idx], m.signal[idx], m.histogram[idx]
}

// Values returns copies of the three aligned lines.
func (m *MACD) Values() (line, signal, histogram []float64) {
	line = append([]float64(nil), m.line...)
	signal = append([]float64(nil), m.signal...)
	histogram = append([]float64(nil), m.histogram...)
	return line, signal, histogram
}
