package usecase

import (
	"testing"

	"TradePulse/internal/domain/models"
)

// flatThen builds a long flat close history with one final move, which puts
// both moving averages at rest so the last bar decides the crossover.
func flatThen(n int, base, last float64) []models.Bar {
	bars := make([]models.Bar, 0, n+1)
	for i := 0; i < n; i++ {
		bars = append(bars, barAt(i, base))
	}
	bars = append(bars, barAt(n, last))
	return bars
}

func TestRegistryResolvesBuiltins(t *testing.T) {
	r := NewStrategyRegistry()
	for _, name := range []string{"macd-cross", "ma-cross"} {
		s, err := r.New(name)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if s.Name() != name {
			t.Fatalf("strategy name = %q, want %q", s.Name(), name)
		}
	}
	if _, err := r.New("nope"); err == nil {
		t.Fatalf("unknown strategy resolved")
	}
	names := r.Names()
	if len(names) != 2 || names[0] != "ma-cross" {
		t.Fatalf("Names() = %v", names)
	}
}

func TestMACrossSignals(t *testing.T) {
	s := NewMACross()

	if _, ok := s.Evaluate(flatThen(10, 10, 20)); ok {
		t.Fatalf("signal from too little history")
	}

	dir, ok := s.Evaluate(flatThen(40, 10, 20))
	if !ok || dir != models.DirectionBuy {
		t.Fatalf("upward cross = (%s, %v), want buy", dir, ok)
	}

	dir, ok = s.Evaluate(flatThen(40, 10, 5))
	if !ok || dir != models.DirectionSell {
		t.Fatalf("downward cross = (%s, %v), want sell", dir, ok)
	}

	if _, ok := s.Evaluate(flatThen(40, 10, 10)); ok {
		t.Fatalf("signal without a cross")
	}
}

func TestMACDCrossSignals(t *testing.T) {
	dir, ok := NewMACDCross().Evaluate(flatThen(50, 10, 20))
	if !ok || dir != models.DirectionBuy {
		t.Fatalf("upward cross = (%s, %v), want buy", dir, ok)
	}

	dir, ok = NewMACDCross().Evaluate(flatThen(50, 10, 5))
	if !ok || dir != models.DirectionSell {
		t.Fatalf("downward cross = (%s, %v), want sell", dir, ok)
	}

	if _, ok := NewMACDCross().Evaluate(flatThen(10, 10, 20)); ok {
		t.Fatalf("signal before indicators are defined")
	}
}
