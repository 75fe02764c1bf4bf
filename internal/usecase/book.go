package usecase

import (
	"context"
	"sync"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/service/ratelimit"
	"TradePulse/pkg/logger"
)

// Book is the keyed store of reconcilers: one instance per active
// (instrument, timeframe) pair with explicit activate/reset/dispose
// lifecycle. It routes transport events to the owning reconciler and runs
// the shared staleness sweep.
type Book struct {
	cfg     ReconcilerConfig
	snap    drepo.SnapshotSource
	limiter *ratelimit.Limiter
	metrics drepo.Metrics
	log     *logger.Logger
	subs    *SubscriptionManager

	mu     sync.Mutex
	recs   map[Key]*Reconciler
	leases map[Key]*Lease
}

func NewBook(
	cfg ReconcilerConfig,
	snap drepo.SnapshotSource,
	subs *SubscriptionManager,
	limiter *ratelimit.Limiter,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Book {
	cfg.fill()
	return &Book{
		cfg:     cfg,
		snap:    snap,
		subs:    subs,
		limiter: limiter,
		metrics: metrics,
		log:     log,
		recs:    make(map[Key]*Reconciler),
		leases:  make(map[Key]*Lease),
	}
}

// Activate creates (or returns) the reconciler for key, holding a transport
// lease for it and issuing the initial snapshot fetch.
func (b *Book) Activate(ctx context.Context, key Key) (*Reconciler, error) {
	b.mu.Lock()
	if r, ok := b.recs[key]; ok {
		b.mu.Unlock()
		return r, nil
	}
	b.mu.Unlock()

	lease, err := b.subs.AcquireControl(ctx, key)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if r, ok := b.recs[key]; ok {
		// Lost the race; fold the extra lease back.
		b.mu.Unlock()
		_ = b.subs.Release(ctx, lease)
		return r, nil
	}
	r := NewReconciler(key, b.cfg, b.snap, b.limiter, b.metrics, b.log)
	b.recs[key] = r
	b.leases[key] = lease
	b.mu.Unlock()

	// A key activated between status frames would otherwise never learn the
	// transport is up and so never qualify for the staleness fallback.
	r.SetLive(b.subs.StreamState() == models.ConnConnected)
	r.Reset(ctx)
	return r, nil
}

// Get returns the reconciler for key if active.
func (b *Book) Get(key Key) (*Reconciler, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.recs[key]
	return r, ok
}

// Dispose tears down the reconciler for key and releases its lease. Late
// responses for the key are discarded rather than applied.
func (b *Book) Dispose(ctx context.Context, key Key) {
	b.mu.Lock()
	r, ok := b.recs[key]
	lease := b.leases[key]
	delete(b.recs, key)
	delete(b.leases, key)
	b.mu.Unlock()

	if !ok {
		return
	}
	r.Dispose()
	if lease != nil {
		_ = b.subs.Release(ctx, lease)
	}
}

// Dispatch routes one transport event to the reconcilers it concerns.
// Called from the single stream-consuming goroutine, so per-key arrival
// order is preserved.
func (b *Book) Dispatch(ev models.StreamEvent) {
	switch {
	case ev.Status != nil:
		live := *ev.Status == models.ConnConnected
		for _, r := range b.active() {
			r.SetLive(live)
		}
	case ev.Bar != nil:
		key := Key{Instrument: ev.Bar.Instrument, Timeframe: drepo.Timeframe(ev.Bar.Timeframe)}
		if r, ok := b.Get(key); ok {
			r.ApplyBarUpdate(ev.Bar.Bar)
		}
	case ev.Tick != nil:
		for key, r := range b.activeByKey() {
			if key.Instrument == ev.Tick.Instrument {
				r.ApplyTick(*ev.Tick)
			}
		}
	}
}

// Run drives the periodic staleness sweep until ctx is done.
func (b *Book) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, r := range b.active() {
				r.CheckStaleness(ctx)
			}
		}
	}
}

func (b *Book) active() []*Reconciler {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Reconciler, 0, len(b.recs))
	for _, r := range b.recs {
		out = append(out, r)
	}
	return out
}

func (b *Book) activeByKey() map[Key]*Reconciler {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[Key]*Reconciler, len(b.recs))
	for k, r := range b.recs {
		out[k] = r
	}
	return out
}
