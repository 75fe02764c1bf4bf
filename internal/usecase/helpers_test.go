package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	"TradePulse/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// fakeMetrics counts recorder calls.
type fakeMetrics struct {
	mu         sync.Mutex
	discarded  map[string]int
	errors     map[string]int
	riskBlocks map[string]int
	fallbacks  int
	barsAppld  int
	ticksAppld int
	signals    int
	running    int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		discarded:  make(map[string]int),
		errors:     make(map[string]int),
		riskBlocks: make(map[string]int),
	}
}

func (m *fakeMetrics) RecordBarApplied(string, string) {
	m.mu.Lock()
	m.barsAppld++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordTickApplied(string) {
	m.mu.Lock()
	m.ticksAppld++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordDiscarded(kind string) {
	m.mu.Lock()
	m.discarded[kind]++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordFallbackFetch(string, string) {
	m.mu.Lock()
	m.fallbacks++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordSignal(string, string) {
	m.mu.Lock()
	m.signals++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordRiskBlock(_, limit string) {
	m.mu.Lock()
	m.riskBlocks[limit]++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordLastPrice(string, float64) {}
func (m *fakeMetrics) RecordRunningAgents(n int) {
	m.mu.Lock()
	m.running = n
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordLatency(string, float64) {}

func (m *fakeMetrics) discardedCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discarded[kind]
}

func (m *fakeMetrics) barsAppliedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.barsAppld
}

func (m *fakeMetrics) fallbackCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fallbacks
}

// fakeSnap serves canned snapshot bars and counts fetches.
type fakeSnap struct {
	mu    sync.Mutex
	bars  []models.Bar
	err   error
	calls int
	gate  chan struct{} // when set, Fetch blocks until the gate closes
}

func (s *fakeSnap) Fetch(ctx context.Context, instrument string, tf drepo.Timeframe, count int) ([]models.Bar, error) {
	s.mu.Lock()
	s.calls++
	gate := s.gate
	bars, err := s.bars, s.err
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	out := make([]models.Bar, len(bars))
	copy(out, bars)
	if count > 0 && len(out) > count {
		out = out[len(out)-count:]
	}
	return out, nil
}

func (s *fakeSnap) fetchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeSnap) set(bars []models.Bar, err error) {
	s.mu.Lock()
	s.bars = bars
	s.err = err
	s.mu.Unlock()
}

// fakeStream tracks subscribe/unsubscribe without a real transport.
type fakeStream struct {
	mu     sync.Mutex
	subs   map[string]int
	unsubs map[string]int
	state  models.ConnState
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		subs:   make(map[string]int),
		unsubs: make(map[string]int),
		state:  models.ConnConnected,
	}
}

func (s *fakeStream) Connect(context.Context) error { return nil }
func (s *fakeStream) Subscribe(_ context.Context, instrument string, tf drepo.Timeframe) error {
	s.mu.Lock()
	s.subs[instrument+"|"+string(tf)]++
	s.mu.Unlock()
	return nil
}
func (s *fakeStream) Unsubscribe(_ context.Context, instrument string, tf drepo.Timeframe) error {
	s.mu.Lock()
	s.unsubs[instrument+"|"+string(tf)]++
	s.mu.Unlock()
	return nil
}
func (s *fakeStream) Events(context.Context) (<-chan models.StreamEvent, <-chan error) {
	return make(chan models.StreamEvent), make(chan error)
}
func (s *fakeStream) Reconnect(context.Context) error { return nil }
func (s *fakeStream) Close() error                    { return nil }
func (s *fakeStream) State() models.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeStream) setState(st models.ConnState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *fakeStream) subCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[key]
}

func (s *fakeStream) unsubCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubs[key]
}

// fakeBroker records submissions and can fail on demand.
type fakeBroker struct {
	mu     sync.Mutex
	orders []models.OrderRequest
	err    error
}

func (b *fakeBroker) Submit(_ context.Context, req models.OrderRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	b.orders = append(b.orders, req)
	return "order-1", nil
}

func (b *fakeBroker) submitted() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.orders)
}

// fakeJournal collects recorded events.
type fakeJournal struct {
	mu     sync.Mutex
	events []models.TradeEvent
}

func (j *fakeJournal) Record(_ context.Context, ev models.TradeEvent) error {
	j.mu.Lock()
	j.events = append(j.events, ev)
	j.mu.Unlock()
	return nil
}
func (j *fakeJournal) Close() error { return nil }

func (j *fakeJournal) kinds() []models.TradeEventKind {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]models.TradeEventKind, len(j.events))
	for i, ev := range j.events {
		out[i] = ev.Kind
	}
	return out
}

func barsAt(startMin int, closes ...float64) []models.Bar {
	out := make([]models.Bar, len(closes))
	for i, c := range closes {
		out[i] = barAt(startMin+i, c)
	}
	return out
}

func tickAt(bid, ask float64) models.Tick {
	return models.Tick{
		Instrument: "EUR_USD",
		Bid:        bid,
		Ask:        ask,
		Spread:     ask - bid,
		ObservedAt: time.Now(),
	}
}

// tickInWindow observes the quote inside the minute bar opened at
// barAt(min, ...), so it lands in the newest bar's window.
func tickInWindow(min int, bid, ask float64) models.Tick {
	tk := tickAt(bid, ask)
	tk.ObservedAt = observedAt(min)
	return tk
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
