package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	barsApplied    *prometheus.CounterVec
	ticksApplied   *prometheus.CounterVec
	discarded      *prometheus.CounterVec
	fallbackFetch  *prometheus.CounterVec
	signals        *prometheus.CounterVec
	riskBlocks     *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	runningAgents  prometheus.Gauge
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		barsApplied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_bars_applied_total",
				Help: "Authoritative bar updates applied to a series",
			},
			[]string{"instrument", "timeframe"},
		),
		ticksApplied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_ticks_applied_total",
				Help: "Ticks folded into the current partial bar",
			},
			[]string{"instrument"},
		),
		discarded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_updates_discarded_total",
				Help: "Stale or out-of-order updates dropped",
			},
			[]string{"kind"},
		),
		fallbackFetch: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_fallback_fetches_total",
				Help: "Staleness-triggered snapshot re-fetches",
			},
			[]string{"instrument", "timeframe"},
		),
		signals: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_signals_total",
				Help: "Strategy signals dispatched by agent mode",
			},
			[]string{"agent", "mode"},
		),
		riskBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_risk_blocks_total",
				Help: "Signals suppressed by a risk limit",
			},
			[]string{"agent", "limit"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradepulse_errors_total",
				Help: "Errors encountered by kind",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradepulse_last_price",
				Help: "Last reconciled close for an instrument",
			},
			[]string{"instrument"},
		),
		runningAgents: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradepulse_running_agents",
				Help: "Number of agents currently running",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradepulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordBarApplied(instrument, tf string) {
	r.barsApplied.WithLabelValues(instrument, tf).Inc()
}

func (r *Recorder) RecordTickApplied(instrument string) {
	r.ticksApplied.WithLabelValues(instrument).Inc()
}

func (r *Recorder) RecordDiscarded(kind string) {
	r.discarded.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordFallbackFetch(instrument, tf string) {
	r.fallbackFetch.WithLabelValues(instrument, tf).Inc()
}

func (r *Recorder) RecordSignal(agentID, mode string) {
	r.signals.WithLabelValues(agentID, mode).Inc()
}

func (r *Recorder) RecordRiskBlock(agentID, limit string) {
	r.riskBlocks.WithLabelValues(agentID, limit).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastPrice(instrument string, price float64) {
	r.lastPrice.WithLabelValues(instrument).Set(price)
}

func (r *Recorder) RecordRunningAgents(n int) {
	r.runningAgents.Set(float64(n))
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
