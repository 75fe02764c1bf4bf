package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	drepo "TradePulse/internal/domain/repository"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testKey() Key { return Key{Instrument: "EUR_USD", Timeframe: drepo.TF1m} }

func TestReconcilerResetInstallsSnapshot(t *testing.T) {
	snap := &fakeSnap{bars: barsAt(0, 10, 11, 12)}
	metrics := newFakeMetrics()
	r := NewReconciler(testKey(), ReconcilerConfig{}, snap, nil, metrics, testLogger(t))

	r.Reset(context.Background())
	waitUntil(t, time.Second, r.Available)

	got := r.Snapshot()
	if len(got.Bars) != 3 {
		t.Fatalf("bars = %d, want 3", len(got.Bars))
	}
	if got.Bars[2].Close != 12 {
		t.Fatalf("newest close = %v, want 12", got.Bars[2].Close)
	}
	if got.Stale {
		t.Fatalf("fresh snapshot marked stale")
	}
}

func TestReconcilerLateSnapshotDiscarded(t *testing.T) {
	gate := make(chan struct{})
	snap := &fakeSnap{bars: barsAt(0, 10), gate: gate}
	metrics := newFakeMetrics()
	r := NewReconciler(testKey(), ReconcilerConfig{}, snap, nil, metrics, testLogger(t))

	r.Reset(context.Background())
	r.Dispose()
	close(gate)

	waitUntil(t, time.Second, func() bool { return metrics.discardedCount("late_snapshot") == 1 })
	if r.Available() {
		t.Fatalf("disposed reconciler became available from a late response")
	}
}

func TestReconcilerStaleBarDiscarded(t *testing.T) {
	metrics := newFakeMetrics()
	r := NewReconciler(testKey(), ReconcilerConfig{}, &fakeSnap{}, nil, metrics, testLogger(t))

	r.ApplyBarUpdate(barAt(5, 10))
	r.ApplyBarUpdate(barAt(3, 9))

	if got := metrics.discardedCount("stale_bar"); got != 1 {
		t.Fatalf("stale_bar discards = %d, want 1", got)
	}
	if got := r.Snapshot(); len(got.Bars) != 1 || got.Bars[0].Close != 10 {
		t.Fatalf("series mutated by stale bar: %+v", got.Bars)
	}
}

func TestReconcilerTickAnimatesSnapshotTail(t *testing.T) {
	snap := &fakeSnap{bars: barsAt(0, 10, 11)}
	metrics := newFakeMetrics()
	r := NewReconciler(testKey(), ReconcilerConfig{}, snap, nil, metrics, testLogger(t))

	r.Reset(context.Background())
	waitUntil(t, time.Second, r.Available)

	r.ApplyTick(tickInWindow(1, 11.5, 12.5))
	got := r.Snapshot()
	if got.Bars[1].Close != 12 {
		t.Fatalf("tail close = %v, want mid 12", got.Bars[1].Close)
	}

	// An authoritative write locks the tail against further tick mutation.
	r.ApplyBarUpdate(barAt(1, 11))
	r.ApplyTick(tickInWindow(1, 90, 100))
	got = r.Snapshot()
	if got.Bars[1].Close != 11 {
		t.Fatalf("locked tail mutated by tick: close = %v", got.Bars[1].Close)
	}
}

func TestReconcilerNegativeSpreadTickDropped(t *testing.T) {
	metrics := newFakeMetrics()
	r := NewReconciler(testKey(), ReconcilerConfig{}, &fakeSnap{}, nil, metrics, testLogger(t))

	tick := tickAt(10, 11)
	tick.Spread = -1
	r.ApplyTick(tick)

	if got := metrics.discardedCount("invalid_tick"); got != 1 {
		t.Fatalf("invalid_tick discards = %d, want 1", got)
	}
}

func TestReconcilerFallbackOncePerStaleWindow(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
	snap := &fakeSnap{bars: barsAt(0, 10)}
	metrics := newFakeMetrics()
	cfg := ReconcilerConfig{StaleAfter: 10 * time.Second}
	r := NewReconciler(testKey(), cfg, snap, nil, metrics, testLogger(t))
	r.now = clock.Now

	r.Reset(context.Background())
	waitUntil(t, time.Second, r.Available)
	r.SetLive(true)

	// Within the window: no fallback.
	clock.Advance(5 * time.Second)
	r.CheckStaleness(context.Background())
	if got := metrics.fallbackCount(); got != 0 {
		t.Fatalf("fallback before staleness: %d", got)
	}

	// Past the window: exactly one fetch no matter how often checked.
	clock.Advance(6 * time.Second)
	r.CheckStaleness(context.Background())
	r.CheckStaleness(context.Background())
	r.CheckStaleness(context.Background())
	if got := metrics.fallbackCount(); got != 1 {
		t.Fatalf("fallbacks in one window = %d, want 1", got)
	}
	// Wait for the recovered bar to land before moving the clock again.
	waitUntil(t, time.Second, func() bool { return metrics.barsAppliedCount() == 1 })

	// A later window allows another.
	clock.Advance(11 * time.Second)
	r.CheckStaleness(context.Background())
	if got := metrics.fallbackCount(); got != 2 {
		t.Fatalf("fallbacks after new window = %d, want 2", got)
	}
}

func TestReconcilerRetriesInitialSnapshotOnSweep(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
	snap := &fakeSnap{err: errors.New("history down")}
	metrics := newFakeMetrics()
	r := NewReconciler(testKey(), ReconcilerConfig{StaleAfter: 10 * time.Second}, snap, nil, metrics, testLogger(t))
	r.now = clock.Now

	r.Reset(context.Background())
	waitUntil(t, time.Second, func() bool { return snap.fetchCalls() == 1 })

	// Within the window the sweep does not hammer the source.
	r.CheckStaleness(context.Background())
	r.CheckStaleness(context.Background())
	if got := snap.fetchCalls(); got != 1 {
		t.Fatalf("fetches within one window = %d, want 1", got)
	}

	// Next window: the source recovered, so the retried fetch lands.
	snap.set(barsAt(0, 10, 11), nil)
	clock.Advance(11 * time.Second)
	r.CheckStaleness(context.Background())
	waitUntil(t, time.Second, r.Available)
	if got := snap.fetchCalls(); got != 2 {
		t.Fatalf("fetches = %d, want 2", got)
	}
}

func TestReconcilerResetOutlivesCallerContext(t *testing.T) {
	gate := make(chan struct{})
	snap := &fakeSnap{bars: barsAt(0, 10), gate: gate}
	metrics := newFakeMetrics()
	r := NewReconciler(testKey(), ReconcilerConfig{}, snap, nil, metrics, testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	r.Reset(ctx)
	cancel()
	close(gate)

	waitUntil(t, time.Second, r.Available)
}

func TestReconcilerDisconnectedNeverFallsBack(t *testing.T) {
	clock := newFakeClock(time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC))
	snap := &fakeSnap{bars: barsAt(0, 10)}
	metrics := newFakeMetrics()
	r := NewReconciler(testKey(), ReconcilerConfig{StaleAfter: 10 * time.Second}, snap, nil, metrics, testLogger(t))
	r.now = clock.Now

	r.Reset(context.Background())
	waitUntil(t, time.Second, r.Available)
	r.SetLive(false)

	clock.Advance(time.Minute)
	r.CheckStaleness(context.Background())
	if got := metrics.fallbackCount(); got != 0 {
		t.Fatalf("fallback while disconnected: %d", got)
	}
	if got := r.Snapshot(); !got.Stale {
		t.Fatalf("aged series not marked stale")
	}
}
