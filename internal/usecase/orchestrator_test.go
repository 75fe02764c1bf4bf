package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"TradePulse/internal/domain/models"
	"TradePulse/internal/repository"
	"TradePulse/internal/service/broker"
)

// stubStrategy signals the same direction on every closed bar.
type stubStrategy struct {
	dir models.Direction
}

func (s *stubStrategy) Name() string { return "stub" }
func (s *stubStrategy) Evaluate(bars []models.Bar) (models.Direction, bool) {
	if len(bars) == 0 {
		return "", false
	}
	return s.dir, true
}

type orchFixture struct {
	orch    *Orchestrator
	stream  *fakeStream
	subs    *SubscriptionManager
	snap    *fakeSnap
	broker  *fakeBroker
	trades  *repository.TradeStore
	journal *fakeJournal
	metrics *fakeMetrics
}

func newOrchFixture(t *testing.T) *orchFixture {
	f := &orchFixture{
		stream:  newFakeStream(),
		snap:    &fakeSnap{bars: barsAt(0, 10, 11)},
		broker:  &fakeBroker{},
		trades:  repository.NewTradeStore(),
		journal: &fakeJournal{},
		metrics: newFakeMetrics(),
	}
	f.subs = NewSubscriptionManager(f.stream, f.metrics, 16)
	registry := NewStrategyRegistry()
	registry.Register("always-buy", func() Strategy { return &stubStrategy{dir: models.DirectionBuy} })
	f.orch = NewOrchestrator(OrchestratorConfig{SnapshotCount: 10}, f.subs, f.snap,
		f.broker, f.trades, f.journal, registry, f.metrics, testLogger(t))
	return f
}

func (f *orchFixture) createAgent(t *testing.T, mode string) models.Agent {
	t.Helper()
	agent, err := f.orch.Create(context.Background(), models.CreateAgentRequest{
		Mode:        mode,
		Instrument:  "EUR_USD",
		TF:          "1m",
		StrategyRef: "always-buy",
		TradeSize:   2,
	})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	return agent
}

func (f *orchFixture) closeBar(min int, close float64) {
	bar := models.BarUpdate{Instrument: "EUR_USD", Timeframe: "1m", Bar: barAt(min, close)}
	f.subs.Broadcast(models.StreamEvent{Bar: &bar})
}

func (f *orchFixture) journalHas(kind models.TradeEventKind) func() bool {
	return func() bool {
		for _, k := range f.journal.kinds() {
			if k == kind {
				return true
			}
		}
		return false
	}
}

func TestAgentLifecycleTransitions(t *testing.T) {
	f := newOrchFixture(t)
	ctx := context.Background()
	agent := f.createAgent(t, "paper")

	if agent.Status != models.AgentStopped {
		t.Fatalf("new agent status = %s, want stopped", agent.Status)
	}

	if _, err := f.orch.Start(ctx, agent.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.orch.Start(ctx, agent.ID); !errors.Is(err, ErrInvalidTransit) {
		t.Fatalf("second start error = %v, want ErrInvalidTransit", err)
	}

	if _, err := f.orch.Pause(ctx, agent.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := f.orch.Resume(ctx, agent.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if _, err := f.orch.Resume(ctx, agent.ID); !errors.Is(err, ErrInvalidTransit) {
		t.Fatalf("resume running error = %v, want ErrInvalidTransit", err)
	}

	got, err := f.orch.Stop(ctx, agent.ID)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got.Status != models.AgentStopped {
		t.Fatalf("stopped status = %s", got.Status)
	}
	if _, err := f.orch.Acknowledge(ctx, agent.ID); !errors.Is(err, ErrInvalidTransit) {
		t.Fatalf("acknowledge non-errored = %v, want ErrInvalidTransit", err)
	}
}

func TestCreateRejectsUnknownStrategy(t *testing.T) {
	f := newOrchFixture(t)
	_, err := f.orch.Create(context.Background(), models.CreateAgentRequest{
		Mode: "paper", Instrument: "EUR_USD", TF: "1m", StrategyRef: "no-such-strategy",
	})
	if err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}

func TestStartStopManagesLease(t *testing.T) {
	f := newOrchFixture(t)
	ctx := context.Background()
	agent := f.createAgent(t, "paper")

	if _, err := f.orch.Start(ctx, agent.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := f.stream.subCount("EUR_USD|1m"); got != 1 {
		t.Fatalf("subscribes after start = %d, want 1", got)
	}

	if _, err := f.orch.Stop(ctx, agent.ID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := f.stream.unsubCount("EUR_USD|1m"); got != 1 {
		t.Fatalf("unsubscribes after stop = %d, want 1", got)
	}
}

func TestDeleteRejectsLeftoverPendingTrades(t *testing.T) {
	f := newOrchFixture(t)
	ctx := context.Background()
	agent := f.createAgent(t, "confirmation")

	if _, err := f.orch.Start(ctx, agent.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.orch.Delete(ctx, agent.ID); !errors.Is(err, ErrAgentNotStopped) {
		t.Fatalf("delete running agent = %v, want ErrAgentNotStopped", err)
	}

	trade := models.PendingTrade{
		AgentID:    agent.ID,
		Instrument: "EUR_USD",
		Direction:  models.DirectionBuy,
		Size:       1,
	}
	if err := f.trades.Create(ctx, &trade); err != nil {
		t.Fatalf("seed trade: %v", err)
	}

	if _, err := f.orch.Stop(ctx, agent.ID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := f.orch.Delete(ctx, agent.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := f.trades.Get(ctx, trade.ID)
	if err != nil {
		t.Fatalf("get trade: %v", err)
	}
	if got.Status != models.TradeRejected {
		t.Fatalf("leftover trade status = %s, want rejected", got.Status)
	}
	if !f.journalHas(models.EventResolved)() {
		t.Fatalf("delete did not journal the rejection")
	}
	if _, err := f.orch.Get(ctx, agent.ID); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("deleted agent still retrievable: %v", err)
	}
}

func TestPaperModeOpensPositionOnBarClose(t *testing.T) {
	f := newOrchFixture(t)
	ctx := context.Background()
	agent := f.createAgent(t, "paper")

	if _, err := f.orch.Start(ctx, agent.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Each appended bar freezes the previous close for evaluation.
	f.closeBar(2, 12)
	f.closeBar(3, 13)

	waitUntil(t, time.Second, f.journalHas(models.EventPaperFill))
	_, _ = f.orch.Stop(ctx, agent.ID)

	if f.broker.submitted() != 0 {
		t.Fatalf("paper mode reached the broker")
	}
}

func TestConfirmationModeCreatesPendingTrade(t *testing.T) {
	f := newOrchFixture(t)
	ctx := context.Background()
	agent := f.createAgent(t, "confirmation")

	if _, err := f.orch.Start(ctx, agent.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.closeBar(2, 12)
	f.closeBar(3, 13)

	waitUntil(t, time.Second, func() bool {
		pending, _ := f.trades.ListPending(ctx)
		return len(pending) > 0
	})
	_, _ = f.orch.Stop(ctx, agent.ID)

	pending, _ := f.trades.ListPending(ctx)
	if pending[0].AgentID != agent.ID || pending[0].Direction != models.DirectionBuy {
		t.Fatalf("unexpected pending trade: %+v", pending[0])
	}
	if f.broker.submitted() != 0 {
		t.Fatalf("confirmation mode submitted without approval")
	}
}

func TestAutoModeSubmitsWithinRiskLimits(t *testing.T) {
	f := newOrchFixture(t)
	ctx := context.Background()
	agent := f.createAgent(t, "auto")

	if _, err := f.orch.Start(ctx, agent.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.closeBar(2, 12)
	f.closeBar(3, 13)

	waitUntil(t, time.Second, func() bool { return f.broker.submitted() > 0 })
	waitUntil(t, time.Second, f.journalHas(models.EventSubmitted))
	waitUntil(t, time.Second, f.journalHas(models.EventExecuted))
	_, _ = f.orch.Stop(ctx, agent.ID)
}

func TestAutoModeRiskBlockKeepsAgentRunning(t *testing.T) {
	f := newOrchFixture(t)
	ctx := context.Background()
	agent, err := f.orch.Create(ctx, models.CreateAgentRequest{
		Mode:        "auto",
		Instrument:  "EUR_USD",
		TF:          "1m",
		StrategyRef: "always-buy",
		TradeSize:   2,
		Risk:        models.RiskConfig{MaxExposure: 1}, // size*price always exceeds this
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.orch.Start(ctx, agent.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.closeBar(2, 12)
	f.closeBar(3, 13)

	waitUntil(t, time.Second, f.journalHas(models.EventRiskBlocked))
	if f.broker.submitted() != 0 {
		t.Fatalf("blocked signal reached the broker")
	}
	got, _ := f.orch.Get(ctx, agent.ID)
	if got.Status != models.AgentRunning {
		t.Fatalf("risk block changed agent status to %s", got.Status)
	}
	_, _ = f.orch.Stop(ctx, agent.ID)
}

func TestAutoModeBrokerRejectionErrorsAgent(t *testing.T) {
	f := newOrchFixture(t)
	f.broker.err = &broker.RejectionError{Code: "INSUFFICIENT_MARGIN", Reason: "margin exhausted"}
	ctx := context.Background()
	agent := f.createAgent(t, "auto")

	if _, err := f.orch.Start(ctx, agent.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.closeBar(2, 12)
	f.closeBar(3, 13)

	waitUntil(t, time.Second, func() bool {
		got, err := f.orch.Get(ctx, agent.ID)
		return err == nil && got.Status == models.AgentError
	})

	got, _ := f.orch.Get(ctx, agent.ID)
	if got.LastError == "" {
		t.Fatalf("errored agent carries no reason")
	}

	// The operator acknowledges, then may start again.
	if _, err := f.orch.Acknowledge(ctx, agent.ID); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	got, _ = f.orch.Get(ctx, agent.ID)
	if got.Status != models.AgentStopped {
		t.Fatalf("acknowledged status = %s, want stopped", got.Status)
	}
}

func TestPausedAgentSuppressesSignals(t *testing.T) {
	f := newOrchFixture(t)
	ctx := context.Background()
	agent := f.createAgent(t, "auto")

	if _, err := f.orch.Start(ctx, agent.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.orch.Pause(ctx, agent.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	f.closeBar(2, 12)
	f.closeBar(3, 13)

	// Give the runner time to consume both events.
	time.Sleep(100 * time.Millisecond)
	if f.broker.submitted() != 0 {
		t.Fatalf("paused agent submitted an order")
	}
	_, _ = f.orch.Stop(ctx, agent.ID)
}

func TestPauseScopesConfirmationPolling(t *testing.T) {
	f := newOrchFixture(t)
	ctx := context.Background()
	svc := NewConfirmationService(f.trades, f.broker, f.journal, f.metrics, testLogger(t), time.Second)
	f.orch.SetConfirmationNotifier(svc)
	agent := f.createAgent(t, "confirmation")

	if _, err := f.orch.Start(ctx, agent.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !svc.Polling() {
		t.Fatalf("running confirmation agent should drive polling")
	}

	if _, err := f.orch.Pause(ctx, agent.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if svc.Polling() {
		t.Fatalf("paused agent cannot create trades; polling should idle")
	}

	if _, err := f.orch.Resume(ctx, agent.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !svc.Polling() {
		t.Fatalf("resumed agent should drive polling again")
	}

	if _, err := f.orch.Stop(ctx, agent.ID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if svc.Polling() {
		t.Fatalf("stopped agent still counted for polling")
	}
}
