package indicator

import (
	"math"
	"testing"

	"TradePulse/internal/domain/models"
)

func almostEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) < 1e-9
}

func TestEMASeedAndSmoothing(t *testing.T) {
	e := NewEMA(3)

	if v := e.Append(1); !math.IsNaN(v) {
		t.Fatalf("value with 1 input = %v, want NaN", v)
	}
	if v := e.Append(2); !math.IsNaN(v) {
		t.Fatalf("value with 2 inputs = %v, want NaN", v)
	}
	// Seeded with the simple average of the first period inputs.
	if v := e.Append(3); !almostEqual(v, 2) {
		t.Fatalf("seed = %v, want 2", v)
	}
	// k = 2/(3+1) = 0.5 from here on.
	if v := e.Append(4); !almostEqual(v, 3) {
		t.Fatalf("smoothed = %v, want 3", v)
	}
}

func TestEMAUpdateLastMatchesReplay(t *testing.T) {
	inputs := []float64{5, 6, 7, 8, 9}

	e := NewEMA(3)
	for _, v := range inputs {
		e.Append(v)
	}
	got := e.UpdateLast(20)

	fresh := NewEMA(3)
	var want float64
	for i, v := range inputs {
		if i == len(inputs)-1 {
			v = 20
		}
		want = fresh.Append(v)
	}
	if !almostEqual(got, want) {
		t.Fatalf("UpdateLast = %v, replay = %v", got, want)
	}
}

func TestSMAWindow(t *testing.T) {
	s := NewSMA(3)
	if v := s.Append(3); !math.IsNaN(v) {
		t.Fatalf("partial window = %v, want NaN", v)
	}
	s.Append(6)
	if v := s.Append(9); !almostEqual(v, 6) {
		t.Fatalf("full window = %v, want 6", v)
	}
	if v := s.Append(12); !almostEqual(v, 9) {
		t.Fatalf("sliding window = %v, want 9", v)
	}
	if v := s.UpdateLast(3); !almostEqual(v, 6) {
		t.Fatalf("UpdateLast = %v, want 6", v)
	}
}

func TestMACDDefinitionBoundaries(t *testing.T) {
	m := NewMACD(12, 26, 9)
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 10
	}
	m.Compute(closes)

	line, signal, hist := m.Values()
	if len(line) != 40 || len(signal) != 40 || len(hist) != 40 {
		t.Fatalf("line lengths = %d/%d/%d, want 40", len(line), len(signal), len(hist))
	}
	// The line needs the slow EMA, defined after 26 inputs.
	if !math.IsNaN(line[24]) || math.IsNaN(line[25]) {
		t.Fatalf("line definition boundary wrong: [24]=%v [25]=%v", line[24], line[25])
	}
	// The signal needs 9 defined line points.
	if !math.IsNaN(signal[32]) || math.IsNaN(signal[33]) {
		t.Fatalf("signal definition boundary wrong: [32]=%v [33]=%v", signal[32], signal[33])
	}
	if !math.IsNaN(hist[32]) || !almostEqual(hist[33], 0) {
		t.Fatalf("histogram boundary wrong: [32]=%v [33]=%v", hist[32], hist[33])
	}
}

func TestMACDUpdateLastMatchesRecompute(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 10 + float64(i%5)
	}

	m := NewMACD(12, 26, 9)
	m.Compute(closes)
	m.UpdateLast(42)

	replaced := append([]float64(nil), closes...)
	replaced[len(replaced)-1] = 42
	fresh := NewMACD(12, 26, 9)
	fresh.Compute(replaced)

	gl, gs, gh := m.Last()
	wl, ws, wh := fresh.Last()
	if !almostEqual(gl, wl) || !almostEqual(gs, ws) || !almostEqual(gh, wh) {
		t.Fatalf("UpdateLast (%v,%v,%v) != recompute (%v,%v,%v)", gl, gs, gh, wl, ws, wh)
	}

	// A second in-place update still tracks a single-point replacement.
	m.UpdateLast(7)
	replaced[len(replaced)-1] = 7
	fresh.Compute(replaced)
	gl, gs, gh = m.Last()
	wl, ws, wh = fresh.Last()
	if !almostEqual(gl, wl) || !almostEqual(gs, ws) || !almostEqual(gh, wh) {
		t.Fatalf("repeated UpdateLast (%v,%v,%v) != recompute (%v,%v,%v)", gl, gs, gh, wl, ws, wh)
	}
}

func TestEngineSnapshotAlignment(t *testing.T) {
	e := NewEngine(DefaultFastPeriod, DefaultSlowPeriod, DefaultSignalPeriod)
	bars := make([]models.Bar, 30)
	for i := range bars {
		bars[i] = models.Bar{Close: float64(10 + i)}
	}
	e.Recompute(bars)

	set := e.Snapshot("EUR_USD", "1m")
	for name, line := range map[string][]float64{
		"macd": set.MACD, "signal": set.Signal, "histogram": set.Histogram,
		"fast_ma": set.FastMA, "slow_ma": set.SlowMA,
	} {
		if len(line) != 30 {
			t.Fatalf("%s length = %d, want 30", name, len(line))
		}
	}
	if math.IsNaN(set.FastMA[29]) || !math.IsNaN(set.FastMA[5]) {
		t.Fatalf("fast MA definition window wrong")
	}
}
