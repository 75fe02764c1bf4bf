package usecase

import (
	"context"
	"testing"
	"time"

	"TradePulse/internal/domain/models"
)

func newTestBook(t *testing.T, stream *fakeStream, snap *fakeSnap) *Book {
	metrics := newFakeMetrics()
	subs := NewSubscriptionManager(stream, metrics, 16)
	return NewBook(ReconcilerConfig{}, snap, subs, nil, metrics, testLogger(t))
}

func TestBookActivateSharesReconciler(t *testing.T) {
	stream := newFakeStream()
	b := newTestBook(t, stream, &fakeSnap{bars: barsAt(0, 10)})
	ctx := context.Background()
	key := testKey()

	r1, err := b.Activate(ctx, key)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	r2, err := b.Activate(ctx, key)
	if err != nil {
		t.Fatalf("activate again: %v", err)
	}
	if r1 != r2 {
		t.Fatalf("repeated activation built a second reconciler")
	}
	if got := stream.subCount("EUR_USD|1m"); got != 1 {
		t.Fatalf("transport subscribes = %d, want 1", got)
	}

	b.Dispose(ctx, key)
	if _, ok := b.Get(key); ok {
		t.Fatalf("disposed key still active")
	}
	if got := stream.unsubCount("EUR_USD|1m"); got != 1 {
		t.Fatalf("transport unsubscribes = %d, want 1", got)
	}
}

func TestBookActivateSeedsLiveFromStream(t *testing.T) {
	stream := newFakeStream()
	b := newTestBook(t, stream, &fakeSnap{bars: barsAt(0, 10)})

	r, err := b.Activate(context.Background(), testKey())
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	waitUntil(t, time.Second, r.Available)

	// No status frame arrived after activation; the live flag must come
	// from the transport's current state or staleness fallback never fires.
	if got := r.Snapshot(); !got.Live {
		t.Fatalf("freshly activated key not live despite connected stream")
	}

	stream.setState(models.ConnDisconnected)
	r2, err := b.Activate(context.Background(), Key{Instrument: "GBP_USD", Timeframe: testKey().Timeframe})
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	waitUntil(t, time.Second, r2.Available)
	if got := r2.Snapshot(); got.Live {
		t.Fatalf("key activated on a dead stream marked live")
	}
}

func TestBookActivateSurvivesRequestContext(t *testing.T) {
	stream := newFakeStream()
	gate := make(chan struct{})
	b := newTestBook(t, stream, &fakeSnap{bars: barsAt(0, 10), gate: gate})

	ctx, cancel := context.WithCancel(context.Background())
	r, err := b.Activate(ctx, testKey())
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	cancel()
	close(gate)

	// The snapshot fetch must not die with the request that triggered it.
	waitUntil(t, time.Second, r.Available)
}

func TestBookDispatchRouting(t *testing.T) {
	stream := newFakeStream()
	b := newTestBook(t, stream, &fakeSnap{bars: barsAt(0, 10)})
	ctx := context.Background()

	r, err := b.Activate(ctx, testKey())
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	waitUntil(t, time.Second, r.Available)

	bar := models.BarUpdate{Instrument: "EUR_USD", Timeframe: "1m", Bar: barAt(1, 42)}
	b.Dispatch(models.StreamEvent{Bar: &bar})
	if got := r.Snapshot(); len(got.Bars) != 2 || got.Bars[1].Close != 42 {
		t.Fatalf("bar not routed: %+v", got.Bars)
	}

	state := models.ConnConnected
	b.Dispatch(models.StreamEvent{Status: &state})
	if got := r.Snapshot(); !got.Live {
		t.Fatalf("status not routed")
	}

	tick := tickAt(43, 45)
	b.Dispatch(models.StreamEvent{Tick: &tick})
	if got := r.Snapshot(); got.Bars[1].Close != 42 {
		t.Fatalf("tick mutated an authoritative bar: %v", got.Bars[1].Close)
	}
}
