package usecase

import (
	"context"
	"sync"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/service/indicator"
	"TradePulse/internal/service/ratelimit"
	"TradePulse/pkg/logger"
)

// Key identifies one reconciled channel.
type Key struct {
	Instrument string
	Timeframe  drepo.Timeframe
}

func (k Key) String() string { return k.Instrument + "|" + string(k.Timeframe) }

// ReconcilerConfig bounds snapshot and staleness behavior.
type ReconcilerConfig struct {
	StaleAfter    time.Duration
	SnapshotCount int
	FallbackCount int
}

func (c *ReconcilerConfig) fill() {
	if c.StaleAfter <= 0 {
		c.StaleAfter = 10 * time.Second
	}
	if c.SnapshotCount <= 0 {
		c.SnapshotCount = 300
	}
	if c.FallbackCount <= 0 {
		c.FallbackCount = 5
	}
}

// Reconciler owns the authoritative series for one (instrument, timeframe)
// pair. All mutation goes through its mutex, so events for a key are applied
// in arrival order while other keys proceed independently. A generation
// counter guards against late snapshot responses mutating a series that has
// been reset or disposed in the meantime.
type Reconciler struct {
	key     Key
	cfg     ReconcilerConfig
	snap    drepo.SnapshotSource
	limiter *ratelimit.Limiter
	metrics drepo.Metrics
	log     *logger.Logger
	now     func() time.Time

	mu                  sync.Mutex
	state               seriesState
	ind                 *indicator.Engine
	gen                 uint64
	available           bool
	live                bool
	lastAuthoritativeAt time.Time
	// lastFetchAt gates both fallback re-fetches and initial-snapshot
	// retries to one per staleness window.
	lastFetchAt time.Time
}

func NewReconciler(
	key Key,
	cfg ReconcilerConfig,
	snap drepo.SnapshotSource,
	limiter *ratelimit.Limiter,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Reconciler {
	cfg.fill()
	return &Reconciler{
		key:     key,
		cfg:     cfg,
		snap:    snap,
		limiter: limiter,
		metrics: metrics,
		log:     log,
		now:     time.Now,
		ind:     indicator.NewEngine(indicator.DefaultFastPeriod, indicator.DefaultSlowPeriod, indicator.DefaultSignalPeriod),
	}
}

// Reset synchronously discards all state, invalidates in-flight responses,
// and issues a fresh snapshot fetch. The fetch outlives the caller's context:
// activation often happens on a request context, and a canceled request must
// not strand the series.
func (r *Reconciler) Reset(ctx context.Context) {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.state = seriesState{}
	r.available = false
	r.lastAuthoritativeAt = time.Time{}
	r.lastFetchAt = r.now()
	r.ind.Recompute(nil)
	r.mu.Unlock()

	go r.fetchSnapshot(context.WithoutCancel(ctx), gen, r.cfg.SnapshotCount)
}

// Dispose invalidates the reconciler; any in-flight response for it is
// discarded on arrival.
func (r *Reconciler) Dispose() {
	r.mu.Lock()
	r.gen++
	r.state = seriesState{}
	r.available = false
	r.mu.Unlock()
}

func (r *Reconciler) fetchSnapshot(ctx context.Context, gen uint64, count int) {
	bars, err := r.snap.Fetch(ctx, r.key.Instrument, r.key.Timeframe, count)
	if err != nil {
		r.metrics.RecordError("snapshot_fetch")
		r.log.Warn("snapshot fetch failed",
			logger.String("key", r.key.String()), logger.Error(err))
		return
	}
	r.installSnapshot(gen, bars)
}

func (r *Reconciler) installSnapshot(gen uint64, bars []models.Bar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		// Response for an abandoned key; the series was reset or disposed
		// after this fetch was issued.
		r.metrics.RecordDiscarded("late_snapshot")
		return
	}
	r.state = applySnapshot(bars, r.now())
	r.available = true
	r.lastAuthoritativeAt = r.now()
	r.ind.Recompute(r.state.bars)
}

// ApplyBarUpdate folds an authoritative streamed bar into the series.
func (r *Reconciler) ApplyBarUpdate(bar models.Bar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyBarLocked(bar)
}

func (r *Reconciler) applyBarLocked(bar models.Bar) {
	next, outcome := applyBarUpdate(r.state, bar, r.now())
	switch outcome {
	case outcomeAppended:
		r.state = next
		r.ind.Append(bar)
	case outcomeReplaced:
		r.state = next
		r.ind.UpdateLast(bar)
	case outcomeDiscarded:
		r.metrics.RecordDiscarded("stale_bar")
		return
	default:
		return
	}
	r.lastAuthoritativeAt = r.now()
	r.metrics.RecordBarApplied(r.key.Instrument, string(r.key.Timeframe))
	r.metrics.RecordLastPrice(r.key.Instrument, bar.Close)
}

// ApplyTick folds a quote into the current partial bar, best effort.
func (r *Reconciler) ApplyTick(tick models.Tick) {
	if tick.Spread < 0 {
		r.metrics.RecordDiscarded("invalid_tick")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	next, ok := applyTick(r.state, tick, r.key.Timeframe, r.now())
	if !ok {
		return
	}
	r.state = next
	r.ind.UpdateLast(next.bars[len(next.bars)-1])
	r.metrics.RecordTickApplied(r.key.Instrument)
	r.metrics.RecordLastPrice(r.key.Instrument, tick.Mid())
}

// SetLive records the transport connection state for staleness decisions.
func (r *Reconciler) SetLive(live bool) {
	r.mu.Lock()
	r.live = live
	r.mu.Unlock()
}

// CheckStaleness issues at most one bounded fallback re-fetch per staleness
// window. A series whose initial snapshot never landed gets the full fetch
// retried on the same cadence. Called periodically; safe to call as often as
// desired.
func (r *Reconciler) CheckStaleness(ctx context.Context) {
	r.mu.Lock()
	now := r.now()
	if !r.available {
		if now.Sub(r.lastFetchAt) < r.cfg.StaleAfter {
			r.mu.Unlock()
			return
		}
		r.lastFetchAt = now
		gen := r.gen
		r.mu.Unlock()

		r.log.Warn("series unavailable, retrying snapshot fetch", logger.String("key", r.key.String()))
		go r.fetchSnapshot(ctx, gen, r.cfg.SnapshotCount)
		return
	}
	stale := r.live && now.Sub(r.lastAuthoritativeAt) > r.cfg.StaleAfter
	if !stale || now.Sub(r.lastFetchAt) < r.cfg.StaleAfter {
		r.mu.Unlock()
		return
	}
	if r.limiter != nil && !r.limiter.Allow("fallback:"+r.key.String(), 1, 1.0/r.cfg.StaleAfter.Seconds()) {
		r.mu.Unlock()
		return
	}
	r.lastFetchAt = now
	gen := r.gen
	r.mu.Unlock()

	r.metrics.RecordFallbackFetch(r.key.Instrument, string(r.key.Timeframe))
	r.log.Warn("series stale, issuing fallback fetch", logger.String("key", r.key.String()))
	go r.fallbackFetch(ctx, gen)
}

func (r *Reconciler) fallbackFetch(ctx context.Context, gen uint64) {
	bars, err := r.snap.Fetch(ctx, r.key.Instrument, r.key.Timeframe, r.cfg.FallbackCount)
	if err != nil {
		r.metrics.RecordError("fallback_fetch")
		r.log.Warn("fallback fetch failed",
			logger.String("key", r.key.String()), logger.Error(err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		r.metrics.RecordDiscarded("late_snapshot")
		return
	}
	// Recovered bars go through the same upsert path; re-applying a bar the
	// series already has is a no-op.
	for _, b := range bars {
		r.applyBarLocked(b)
	}
}

// Snapshot returns a read-only copy of the reconciled series.
func (r *Reconciler) Snapshot() models.Series {
	r.mu.Lock()
	defer r.mu.Unlock()
	stale := r.available && r.now().Sub(r.lastAuthoritativeAt) > r.cfg.StaleAfter
	return snapshotSeries(r.state, r.key.Instrument, string(r.key.Timeframe), r.live, stale)
}

// Indicators returns the derived indicator snapshot for the series.
func (r *Reconciler) Indicators() models.IndicatorSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ind.Snapshot(r.key.Instrument, string(r.key.Timeframe))
}

// Available reports whether an initial snapshot has been installed.
func (r *Reconciler) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available
}
