package usecase

import (
	"testing"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
)

func barAt(min int, close float64) models.Bar {
	open := time.Date(2025, 6, 2, 9, min, 0, 0, time.UTC)
	return models.Bar{OpenTime: open, Open: close, High: close, Low: close, Close: close, Volume: 1}
}

// observedAt places a tick inside the minute bar opened at barAt(min, ...).
func observedAt(min int) time.Time {
	return time.Date(2025, 6, 2, 9, min, 30, 0, time.UTC)
}

func TestApplySnapshotSortsAndDedups(t *testing.T) {
	now := time.Now()
	in := []models.Bar{barAt(2, 20), barAt(0, 10), barAt(1, 15), barAt(1, 99)}
	s := applySnapshot(in, now)

	if len(s.bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(s.bars))
	}
	for i := 1; i < len(s.bars); i++ {
		if !s.bars[i].OpenTime.After(s.bars[i-1].OpenTime) {
			t.Fatalf("bars not strictly ordered at %d", i)
		}
	}
	if s.bars[1].Close != 15 {
		t.Fatalf("dedup should keep first occurrence, got close %v", s.bars[1].Close)
	}
	if s.lastLocked {
		t.Fatalf("snapshot tail must stay open to ticks")
	}
}

func TestApplyBarUpdateUpsert(t *testing.T) {
	now := time.Now()
	s := applySnapshot([]models.Bar{barAt(0, 10), barAt(1, 11)}, now)

	// equal open time replaces in place
	repl := barAt(1, 12)
	s2, outcome := applyBarUpdate(s, repl, now)
	if outcome != outcomeReplaced {
		t.Fatalf("expected replace, got %v", outcome)
	}
	if len(s2.bars) != 2 || s2.bars[1].Close != 12 {
		t.Fatalf("replace did not overwrite newest bar: %+v", s2.bars)
	}

	// newer open time appends
	s3, outcome := applyBarUpdate(s2, barAt(2, 13), now)
	if outcome != outcomeAppended {
		t.Fatalf("expected append, got %v", outcome)
	}
	if len(s3.bars) != 3 {
		t.Fatalf("expected 3 bars after append, got %d", len(s3.bars))
	}

	// older open time is discarded without mutation
	s4, outcome := applyBarUpdate(s3, barAt(0, 99), now)
	if outcome != outcomeDiscarded {
		t.Fatalf("expected discard, got %v", outcome)
	}
	if s4.bars[0].Close != 10 {
		t.Fatalf("discarded update must not mutate series")
	}
}

func TestApplyBarUpdateIdempotent(t *testing.T) {
	now := time.Now()
	s := applySnapshot([]models.Bar{barAt(0, 10)}, now)
	b := barAt(1, 11)

	s1, _ := applyBarUpdate(s, b, now)
	s2, outcome := applyBarUpdate(s1, b, now)
	if outcome != outcomeReplaced {
		t.Fatalf("re-applying same bar should replace, got %v", outcome)
	}
	if len(s1.bars) != len(s2.bars) {
		t.Fatalf("idempotence violated: %d vs %d bars", len(s1.bars), len(s2.bars))
	}
	for i := range s1.bars {
		if s1.bars[i] != s2.bars[i] {
			t.Fatalf("idempotence violated at bar %d", i)
		}
	}
}

func TestApplyTickMutatesPartialBar(t *testing.T) {
	now := time.Now()
	s := applySnapshot([]models.Bar{barAt(0, 10)}, now)

	tick := models.Tick{Instrument: "EURUSD", Bid: 11, Ask: 13, ObservedAt: observedAt(0)}
	s2, ok := applyTick(s, tick, drepo.TF1m, now)
	if !ok {
		t.Fatalf("tick on open partial bar should apply")
	}
	last := s2.bars[0]
	if last.Close != 12 || last.High != 12 {
		t.Fatalf("mid price not folded in: %+v", last)
	}
	if last.Open != 10 {
		t.Fatalf("tick must not touch open: %+v", last)
	}

	// lower mid drags low and close down
	s3, _ := applyTick(s2, models.Tick{Bid: 8, Ask: 10, ObservedAt: observedAt(0)}, drepo.TF1m, now)
	if s3.bars[0].Low != 9 || s3.bars[0].Close != 9 {
		t.Fatalf("low/close not updated: %+v", s3.bars[0])
	}
	if s3.bars[0].High != 12 {
		t.Fatalf("high must keep prior extreme: %+v", s3.bars[0])
	}
}

func TestApplyTickNeverOverridesAuthoritativeBar(t *testing.T) {
	now := time.Now()
	s := applySnapshot([]models.Bar{barAt(0, 10)}, now)
	s, _ = applyBarUpdate(s, barAt(1, 11), now)

	before := s.bars[len(s.bars)-1]
	s2, ok := applyTick(s, models.Tick{Bid: 100, Ask: 102, ObservedAt: observedAt(1)}, drepo.TF1m, now)
	if ok {
		t.Fatalf("tick must not apply after an authoritative bar write")
	}
	if s2.bars[len(s2.bars)-1] != before {
		t.Fatalf("locked bar mutated by tick")
	}
}

func TestApplyTickOutsideCurrentWindowIsDropped(t *testing.T) {
	now := time.Now()
	// A snapshot tail is a closed bar; a quote from a later minute must not
	// rewrite it.
	s := applySnapshot([]models.Bar{barAt(0, 10)}, now)

	_, ok := applyTick(s, models.Tick{Bid: 100, Ask: 102, ObservedAt: observedAt(5)}, drepo.TF1m, now)
	if ok {
		t.Fatalf("tick observed after the newest bar's window must be dropped")
	}

	s2, _ := applyBarUpdate(s, barAt(5, 20), now)
	if s2.bars[0].Close != 10 || s2.bars[0].High != 10 {
		t.Fatalf("closed bar corrupted: %+v", s2.bars[0])
	}
}

func TestApplyTickOnEmptySeriesIsNoop(t *testing.T) {
	s := seriesState{}
	_, ok := applyTick(s, models.Tick{Bid: 1, Ask: 2, ObservedAt: time.Now()}, drepo.TF1m, time.Now())
	if ok {
		t.Fatalf("tick must never create a bar")
	}
}
