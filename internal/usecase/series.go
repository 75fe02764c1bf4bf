package usecase

import (
	"sort"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
)

// seriesState is the authoritative bar sequence for one (instrument,
// timeframe) pair plus the bookkeeping the tick path needs. Reconciliation
// rules are expressed as pure reducers over this value so they stay testable
// without any transport wiring.
type seriesState struct {
	bars []models.Bar
	// lastLocked is true once the newest bar has been written by an
	// authoritative bar_update; ticks may not touch it after that.
	lastLocked bool
	updatedAt  time.Time
}

type applyOutcome int

const (
	outcomeIgnored applyOutcome = iota
	outcomeReplaced
	outcomeAppended
	outcomeDiscarded
)

func cloneBars(bars []models.Bar) []models.Bar {
	out := make([]models.Bar, len(bars))
	copy(out, bars)
	return out
}

// applySnapshot installs an initial ordered series, replacing all prior
// state including any partial-bar mutation. Input is defensively sorted and
// deduplicated by OpenTime (first occurrence wins). The newest snapshot bar
// becomes the current partial candidate; ticks can animate it only while its
// window is still the current one, and only until the stream asserts it.
func applySnapshot(bars []models.Bar, now time.Time) seriesState {
	out := cloneBars(bars)
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })

	dedup := out[:0]
	var prev time.Time
	for i, b := range out {
		if i > 0 && !b.OpenTime.After(prev) {
			continue
		}
		dedup = append(dedup, b)
		prev = b.OpenTime
	}

	return seriesState{bars: dedup, lastLocked: false, updatedAt: now}
}

// applyBarUpdate upserts an authoritative bar by OpenTime.
//
//	equal to the newest bar  -> replace in place (overwrites tick synthesis)
//	strictly greater         -> append; the previous bar is frozen as closed
//	older than the newest    -> discard as a stale duplicate
//
// Applying the same update twice yields an identical state.
func applyBarUpdate(prior seriesState, bar models.Bar, now time.Time) (seriesState, applyOutcome) {
	next := prior
	next.bars = cloneBars(prior.bars)

	if len(next.bars) == 0 {
		next.bars = append(next.bars, bar)
		next.lastLocked = true
		next.updatedAt = now
		return next, outcomeAppended
	}

	last := next.bars[len(next.bars)-1]
	switch {
	case bar.OpenTime.Equal(last.OpenTime):
		next.bars[len(next.bars)-1] = bar
		next.lastLocked = true
		next.updatedAt = now
		return next, outcomeReplaced
	case bar.OpenTime.After(last.OpenTime):
		next.bars = append(next.bars, bar)
		next.lastLocked = true
		next.updatedAt = now
		return next, outcomeAppended
	default:
		return prior, outcomeDiscarded
	}
}

// applyTick folds a quote into the current partial bar's high/low/close using
// the mid price. It never creates a bar and never touches a bar the stream
// has already asserted; an empty series, a locked newest bar, or a tick
// observed outside the newest bar's window drops the tick. The window gate
// matters for snapshot tails: every snapshot bar is closed, and a tick from a
// later window must not rewrite it.
func applyTick(prior seriesState, tick models.Tick, tf drepo.Timeframe, now time.Time) (seriesState, bool) {
	if len(prior.bars) == 0 || prior.lastLocked {
		return prior, false
	}
	if !tf.Align(tick.ObservedAt).Equal(prior.bars[len(prior.bars)-1].OpenTime) {
		return prior, false
	}

	mid := tick.Mid()
	next := prior
	next.bars = cloneBars(prior.bars)
	last := &next.bars[len(next.bars)-1]
	if mid > last.High {
		last.High = mid
	}
	if mid < last.Low {
		last.Low = mid
	}
	last.Close = mid
	next.updatedAt = now
	return next, true
}

// snapshotSeries exports the state as a read-only Series.
func snapshotSeries(s seriesState, instrument string, tf string, live, stale bool) models.Series {
	return models.Series{
		Instrument: instrument,
		Timeframe:  tf,
		Bars:       cloneBars(s.bars),
		Live:       live,
		Stale:      stale,
		UpdatedAt:  s.updatedAt,
	}
}
