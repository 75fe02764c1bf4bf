package indicator

import (
	"TradePulse/internal/domain/models"
)

// Engine derives the indicator set for one reconciled series. It is a pure
// function of the bars fed to it; the reconciler drives the recompute policy.
type Engine struct {
	macd   *MACD
	fastMA *SMA
	slowMA *SMA

	fastLine []float64
	slowLine []float64
}

// Default MACD parameters.
const (
	DefaultFastPeriod   = 12
	DefaultSlowPeriod   = 26
	DefaultSignalPeriod = 9
)

func NewEngine(fastPeriod, slowPeriod, signalPeriod int) *Engine {
	return &Engine{
		macd:   NewMACD(fastPeriod, slowPeriod, signalPeriod),
		fastMA: NewSMA(fastPeriod),
		slowMA: NewSMA(slowPeriod),
	}
}

// Recompute rebuilds all indicator values from scratch.
func (e *Engine) Recompute(bars []models.Bar) {
	e.macd.Compute(nil)
	e.fastMA.Reset()
	e.slowMA.Reset()
	e.fastLine = e.fastLine[:0]
	e.slowLine = e.slowLine[:0]
	for _, b := range bars {
		e.Append(b)
	}
}

// Append extends every indicator by one point for a newly appended bar.
func (e *Engine) Append(bar models.Bar) {
	e.macd.Append(bar.Close)
	e.fastLine = append(e.fastLine, e.fastMA.Append(bar.Close))
	e.slowLine = append(e.slowLine, e.slowMA.Append(bar.Close))
}

// UpdateLast recomputes only the final indicator point after the current
// partial bar mutated.
func (e *Engine) UpdateLast(bar models.Bar) {
	if len(e.fastLine) == 0 {
		return
	}
	e.macd.UpdateLast(bar.Close)
	e.fastLine[len(e.fastLine)-1] = e.fastMA.UpdateLast(bar.Close)
	e.slowLine[len(e.slowLine)-1] = e.slowMA.UpdateLast(bar.Close)
}

// Snapshot returns a read-only copy of all derived lines.
func (e *Engine) Snapshot(instrument, tf string) models.IndicatorSet {
	line, signal, hist := e.macd.Values()
	return models.IndicatorSet{
		Instrument: instrument,
		Timeframe:  tf,
		MACD:       line,
		Signal:     signal,
		Histogram:  hist,
		FastMA:     append([]float64(nil), e.fastLine...),
		SlowMA:     append([]float64(nil), e.slowLine...),
	}
}
