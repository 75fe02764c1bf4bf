package usecase

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"TradePulse/internal/domain/models"
	"TradePulse/internal/service/indicator"
)

// Strategy turns a closed-bar window into a trading intent. Evaluate is
// called once per closed bar with the full window, oldest first; it returns
// ok=false when there is nothing to do.
type Strategy interface {
	Name() string
	Evaluate(bars []models.Bar) (models.Direction, bool)
}

// StrategyFactory builds a fresh strategy instance per agent so that
// per-agent state never leaks between runners.
type StrategyFactory func() Strategy

// StrategyRegistry resolves strategy refs from agent definitions.
type StrategyRegistry struct {
	mu        sync.RWMutex
	factories map[string]StrategyFactory
}

func NewStrategyRegistry() *StrategyRegistry {
	r := &StrategyRegistry{factories: make(map[string]StrategyFactory)}
	r.Register("macd-cross", func() Strategy { return NewMACDCross() })
	r.Register("ma-cross", func() Strategy { return NewMACross() })
	return r
}

func (r *StrategyRegistry) Register(name string, f StrategyFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *StrategyRegistry) New(name string) (Strategy, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return f(), nil
}

func (r *StrategyRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MACDCross signals when the MACD line crosses its signal line: upward cross
// is a buy, downward cross a sell. No signal until both are defined on two
// consecutive bars.
type MACDCross struct {
	macd *indicator.MACD
}

func NewMACDCross() *MACDCross {
	return &MACDCross{macd: indicator.NewMACD(indicator.DefaultFastPeriod, indicator.DefaultSlowPeriod, indicator.DefaultSignalPeriod)}
}

func (s *MACDCross) Name() string { return "macd-cross" }

func (s *MACDCross) Evaluate(bars []models.Bar) (models.Direction, bool) {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	s.macd.Compute(closes)
	line, sig, _ := s.macd.Values()
	n := len(line)
	if n < 2 {
		return "", false
	}
	prev := line[n-2] - sig[n-2]
	curr := line[n-1] - sig[n-1]
	if math.IsNaN(prev) || math.IsNaN(curr) {
		return "", false
	}
	switch {
	case prev <= 0 && curr > 0:
		return models.DirectionBuy, true
	case prev >= 0 && curr < 0:
		return models.DirectionSell, true
	}
	return "", false
}

// MACross signals on the fast/slow moving-average crossover.
type MACross struct {
	fastPeriod int
	slowPeriod int
}

func NewMACross() *MACross {
	return &MACross{fastPeriod: indicator.DefaultFastPeriod, slowPeriod: indicator.DefaultSlowPeriod}
}

func (s *MACross) Name() string { return "ma-cross" }

func (s *MACross) Evaluate(bars []models.Bar) (models.Direction, bool) {
	if len(bars) < s.slowPeriod+1 {
		return "", false
	}
	prevFast, currFast := trailingSMA(bars, s.fastPeriod)
	prevSlow, currSlow := trailingSMA(bars, s.slowPeriod)
	prev := prevFast - prevSlow
	curr := currFast - currSlow
	switch {
	case prev <= 0 && curr > 0:
		return models.DirectionBuy, true
	case prev >= 0 && curr < 0:
		return models.DirectionSell, true
	}
	return "", false
}

// trailingSMA returns the simple moving average of closes ending at the
// second-to-last bar and at the last bar.
func trailingSMA(bars []models.Bar, period int) (prev, curr float64) {
	n := len(bars)
	var sumPrev, sumCurr float64
	for i := n - period; i < n; i++ {
		sumCurr += bars[i].Close
	}
	for i := n - 1 - period; i < n-1; i++ {
		sumPrev += bars[i].Close
	}
	return sumPrev / float64(period), sumCurr / float64(period)
}
