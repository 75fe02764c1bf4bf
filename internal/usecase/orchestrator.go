package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/service/broker"
	"TradePulse/internal/service/risk"
	"TradePulse/pkg/logger"
)

var (
	ErrAgentNotFound   = errors.New("agent not found")
	ErrInvalidTransit  = errors.New("invalid agent state transition")
	ErrAgentNotStopped = errors.New("agent must be stopped first")
)

// ConfirmationNotifier is told when confirmation-mode agents start and stop,
// so the pending-trade poll loop runs only while at least one is running.
type ConfirmationNotifier interface {
	AgentStarted(agentID string)
	AgentStopped(agentID string)
}

// OrchestratorConfig bounds the per-agent runners.
type OrchestratorConfig struct {
	SnapshotCount int
	Capital       float64
}

func (c *OrchestratorConfig) fill() {
	if c.SnapshotCount <= 0 {
		c.SnapshotCount = 300
	}
	if c.Capital <= 0 {
		c.Capital = 100_000
	}
}

// Orchestrator owns every trading agent and its lifecycle. Each running
// agent has one goroutine consuming an event lease and feeding its own
// bar window; the shared chart state is never touched by agents.
type Orchestrator struct {
	cfg      OrchestratorConfig
	subs     *SubscriptionManager
	snap     drepo.SnapshotSource
	broker   drepo.Broker
	trades   drepo.TradeStore
	journal  drepo.Journal
	registry *StrategyRegistry
	confirm  ConfirmationNotifier
	metrics  drepo.Metrics
	log      *logger.Logger
	now      func() time.Time

	mu     sync.Mutex
	agents map[string]*agentEntry
	seq    uint64
}

type agentEntry struct {
	agent  models.Agent
	runner *agentRunner
}

func NewOrchestrator(
	cfg OrchestratorConfig,
	subs *SubscriptionManager,
	snap drepo.SnapshotSource,
	brk drepo.Broker,
	trades drepo.TradeStore,
	journal drepo.Journal,
	registry *StrategyRegistry,
	metrics drepo.Metrics,
	log *logger.Logger,
) *Orchestrator {
	cfg.fill()
	return &Orchestrator{
		cfg:      cfg,
		subs:     subs,
		snap:     snap,
		broker:   brk,
		trades:   trades,
		journal:  journal,
		registry: registry,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
		agents:   make(map[string]*agentEntry),
	}
}

// SetConfirmationNotifier wires the confirmation poll lease. Must be called
// before any agent starts.
func (o *Orchestrator) SetConfirmationNotifier(n ConfirmationNotifier) { o.confirm = n }

// Create registers a new agent in the stopped state.
func (o *Orchestrator) Create(ctx context.Context, req models.CreateAgentRequest) (models.Agent, error) {
	if _, err := o.registry.New(req.StrategyRef); err != nil {
		return models.Agent{}, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	agent := models.Agent{
		ID:          fmt.Sprintf("agent-%d-%d", o.now().UnixMilli(), o.seq),
		Status:      models.AgentStopped,
		Mode:        models.AgentMode(req.Mode),
		Instrument:  req.Instrument,
		Timeframe:   req.TF,
		StrategyRef: req.StrategyRef,
		Risk:        req.Risk,
		TradeSize:   req.TradeSize,
		CreatedAt:   o.now().UTC(),
	}
	o.agents[agent.ID] = &agentEntry{agent: agent}
	o.log.Info("agent created",
		logger.String("agent_id", agent.ID),
		logger.String("mode", string(agent.Mode)),
		logger.String("strategy", agent.StrategyRef))
	return agent, nil
}

// Get returns one agent.
func (o *Orchestrator) Get(ctx context.Context, id string) (models.Agent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.agents[id]
	if !ok {
		return models.Agent{}, ErrAgentNotFound
	}
	return e.agent, nil
}

// List returns all agents ordered by creation.
func (o *Orchestrator) List(ctx context.Context) []models.Agent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.Agent, 0, len(o.agents))
	for _, e := range o.agents {
		out = append(out, e.agent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Start moves a stopped agent to running and launches its runner.
func (o *Orchestrator) Start(ctx context.Context, id string) (models.Agent, error) {
	o.mu.Lock()
	e, ok := o.agents[id]
	if !ok {
		o.mu.Unlock()
		return models.Agent{}, ErrAgentNotFound
	}
	if e.agent.Status != models.AgentStopped {
		a := e.agent
		o.mu.Unlock()
		return a, fmt.Errorf("%w: start from %s", ErrInvalidTransit, a.Status)
	}
	agent := e.agent
	o.mu.Unlock()

	strat, err := o.registry.New(agent.StrategyRef)
	if err != nil {
		return models.Agent{}, err
	}
	key := Key{Instrument: agent.Instrument, Timeframe: drepo.Timeframe(agent.Timeframe)}
	lease, err := o.subs.AcquireEvents(ctx, key)
	if err != nil {
		return models.Agent{}, fmt.Errorf("acquire events for %s: %w", key, err)
	}

	r := newAgentRunner(o, agent, strat, lease)

	o.mu.Lock()
	e.agent.Status = models.AgentRunning
	e.agent.LastError = ""
	e.runner = r
	agent = e.agent
	o.mu.Unlock()

	go r.run(context.WithoutCancel(ctx))

	if agent.Mode == models.ModeConfirmation && o.confirm != nil {
		o.confirm.AgentStarted(agent.ID)
	}
	o.metrics.RecordRunningAgents(o.countRunning())
	o.log.Info("agent started", logger.String("agent_id", agent.ID))
	return agent, nil
}

// Stop halts a running or paused agent.
func (o *Orchestrator) Stop(ctx context.Context, id string) (models.Agent, error) {
	o.mu.Lock()
	e, ok := o.agents[id]
	if !ok {
		o.mu.Unlock()
		return models.Agent{}, ErrAgentNotFound
	}
	if e.agent.Status != models.AgentRunning && e.agent.Status != models.AgentPaused {
		a := e.agent
		o.mu.Unlock()
		return a, fmt.Errorf("%w: stop from %s", ErrInvalidTransit, a.Status)
	}
	r := e.runner
	e.runner = nil
	e.agent.Status = models.AgentStopped
	agent := e.agent
	o.mu.Unlock()

	if r != nil {
		r.halt(ctx)
	}
	if agent.Mode == models.ModeConfirmation && o.confirm != nil {
		o.confirm.AgentStopped(agent.ID)
	}
	o.metrics.RecordRunningAgents(o.countRunning())
	o.log.Info("agent stopped", logger.String("agent_id", agent.ID))
	return agent, nil
}

// Pause keeps the runner consuming events but suppresses signal dispatch.
// A paused confirmation agent cannot produce new pending trades, so it
// also stops counting toward the confirmation poll loop.
func (o *Orchestrator) Pause(ctx context.Context, id string) (models.Agent, error) {
	o.mu.Lock()
	e, ok := o.agents[id]
	if !ok {
		o.mu.Unlock()
		return models.Agent{}, ErrAgentNotFound
	}
	if e.agent.Status != models.AgentRunning {
		a := e.agent
		o.mu.Unlock()
		return a, fmt.Errorf("%w: pause from %s", ErrInvalidTransit, a.Status)
	}
	e.agent.Status = models.AgentPaused
	if e.runner != nil {
		e.runner.setPaused(true)
	}
	agent := e.agent
	o.mu.Unlock()

	if agent.Mode == models.ModeConfirmation && o.confirm != nil {
		o.confirm.AgentStopped(agent.ID)
	}
	return agent, nil
}

// Resume returns a paused agent to running.
func (o *Orchestrator) Resume(ctx context.Context, id string) (models.Agent, error) {
	o.mu.Lock()
	e, ok := o.agents[id]
	if !ok {
		o.mu.Unlock()
		return models.Agent{}, ErrAgentNotFound
	}
	if e.agent.Status != models.AgentPaused {
		a := e.agent
		o.mu.Unlock()
		return a, fmt.Errorf("%w: resume from %s", ErrInvalidTransit, a.Status)
	}
	e.agent.Status = models.AgentRunning
	if e.runner != nil {
		e.runner.setPaused(false)
	}
	agent := e.agent
	o.mu.Unlock()

	if agent.Mode == models.ModeConfirmation && o.confirm != nil {
		o.confirm.AgentStarted(agent.ID)
	}
	return agent, nil
}

// Acknowledge clears an errored agent back to stopped.
func (o *Orchestrator) Acknowledge(ctx context.Context, id string) (models.Agent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.agents[id]
	if !ok {
		return models.Agent{}, ErrAgentNotFound
	}
	if e.agent.Status != models.AgentError {
		return e.agent, fmt.Errorf("%w: acknowledge from %s", ErrInvalidTransit, e.agent.Status)
	}
	e.agent.Status = models.AgentStopped
	return e.agent, nil
}

// Delete removes a stopped agent and rejects any pending trades it left.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	o.mu.Lock()
	e, ok := o.agents[id]
	if !ok {
		o.mu.Unlock()
		return ErrAgentNotFound
	}
	if e.agent.Status != models.AgentStopped {
		o.mu.Unlock()
		return fmt.Errorf("%w: status is %s", ErrAgentNotStopped, e.agent.Status)
	}
	delete(o.agents, id)
	o.mu.Unlock()

	pending, err := o.trades.ListByAgent(ctx, id)
	if err != nil {
		return err
	}
	for _, t := range pending {
		if t.Status != models.TradePendingConfirmation {
			continue
		}
		if _, _, err := o.trades.Resolve(ctx, t.ID, models.TradeRejected); err != nil {
			o.log.Warn("reject on delete failed", logger.String("trade_id", t.ID), logger.Error(err))
			continue
		}
		o.journalEvent(ctx, models.TradeEvent{
			Kind:       models.EventResolved,
			AgentID:    id,
			Instrument: t.Instrument,
			Direction:  t.Direction,
			Size:       t.Size,
			Reason:     "agent deleted",
			At:         o.now().UTC(),
		})
	}
	o.log.Info("agent deleted", logger.String("agent_id", id))
	return nil
}

// MarkError flips an agent into the error state. Used by the runner after a
// broker rejection and by the confirmation flow after an execution failure.
func (o *Orchestrator) MarkError(id, reason string) {
	o.mu.Lock()
	e, ok := o.agents[id]
	if !ok {
		o.mu.Unlock()
		return
	}
	r := e.runner
	e.runner = nil
	e.agent.Status = models.AgentError
	e.agent.LastError = reason
	mode := e.agent.Mode
	o.mu.Unlock()

	if r != nil {
		go r.halt(context.Background())
	}
	if mode == models.ModeConfirmation && o.confirm != nil {
		o.confirm.AgentStopped(id)
	}
	o.metrics.RecordError("agent")
	o.metrics.RecordRunningAgents(o.countRunning())
	o.log.Warn("agent errored", logger.String("agent_id", id), logger.String("reason", reason))
}

func (o *Orchestrator) countRunning() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, e := range o.agents {
		if e.agent.Status == models.AgentRunning || e.agent.Status == models.AgentPaused {
			n++
		}
	}
	return n
}

// Shutdown stops every runner. Agent records stay as they were.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.mu.Lock()
	runners := make([]*agentRunner, 0, len(o.agents))
	for _, e := range o.agents {
		if e.runner != nil {
			runners = append(runners, e.runner)
			e.runner = nil
		}
	}
	o.mu.Unlock()
	for _, r := range runners {
		r.halt(ctx)
	}
}

func (o *Orchestrator) journalEvent(ctx context.Context, ev models.TradeEvent) {
	if o.journal == nil {
		return
	}
	if err := o.journal.Record(ctx, ev); err != nil {
		o.metrics.RecordError("journal")
		o.log.Warn("journal record failed", logger.Error(err))
	}
}

// agentRunner is the per-agent goroutine state. It keeps its own bar window,
// reduced with the same upsert rules as the chart path, and reacts only to
// bar closes.
type agentRunner struct {
	o     *Orchestrator
	agent models.Agent
	strat Strategy
	lease *Lease
	risk  *risk.Manager

	stop chan struct{}
	done chan struct{}

	pmu    sync.Mutex
	paused bool

	state seriesState
	ready bool
	paper paperPosition
}

type paperPosition struct {
	open      bool
	direction models.Direction
	size      float64
	entry     float64
	realized  float64
}

func newAgentRunner(o *Orchestrator, agent models.Agent, strat Strategy, lease *Lease) *agentRunner {
	return &agentRunner{
		o:     o,
		agent: agent,
		strat: strat,
		lease: lease,
		risk:  risk.New(agent.Risk, o.cfg.Capital),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (r *agentRunner) setPaused(p bool) {
	r.pmu.Lock()
	r.paused = p
	r.pmu.Unlock()
}

func (r *agentRunner) isPaused() bool {
	r.pmu.Lock()
	defer r.pmu.Unlock()
	return r.paused
}

// halt signals the runner and waits for it to drain.
func (r *agentRunner) halt(ctx context.Context) {
	close(r.stop)
	select {
	case <-r.done:
	case <-ctx.Done():
	}
	_ = r.o.subs.Release(context.WithoutCancel(ctx), r.lease)
}

func (r *agentRunner) run(ctx context.Context) {
	defer close(r.done)

	key := r.lease.Key()
	bars, err := r.o.snap.Fetch(ctx, key.Instrument, key.Timeframe, r.o.cfg.SnapshotCount)
	if err != nil {
		r.o.log.Warn("agent snapshot fetch failed",
			logger.String("agent_id", r.agent.ID), logger.Error(err))
	} else {
		r.state = applySnapshot(bars, r.o.now())
		r.ready = true
	}

	for {
		select {
		case <-r.stop:
			return
		case ev := <-r.lease.C:
			r.handle(ctx, ev)
		}
	}
}

func (r *agentRunner) handle(ctx context.Context, ev models.StreamEvent) {
	switch {
	case ev.Bar != nil:
		if !r.ready {
			return
		}
		next, outcome := applyBarUpdate(r.state, ev.Bar.Bar, r.o.now())
		r.state = next
		// a new bar freezes the previous one; that close is what we trade on
		if outcome == outcomeAppended && len(r.state.bars) > 1 {
			r.evaluate(ctx, r.state.bars[:len(r.state.bars)-1])
		}
	case ev.Tick != nil:
		if !r.ready {
			return
		}
		if next, ok := applyTick(r.state, *ev.Tick, drepo.Timeframe(r.agent.Timeframe), r.o.now()); ok {
			r.state = next
		}
	}
}

func (r *agentRunner) evaluate(ctx context.Context, closed []models.Bar) {
	if r.isPaused() {
		return
	}
	dir, ok := r.strat.Evaluate(closed)
	if !ok {
		return
	}
	last := closed[len(closed)-1]
	sig := models.Signal{
		AgentID:    r.agent.ID,
		Instrument: r.agent.Instrument,
		Direction:  dir,
		Price:      last.Close,
		Size:       r.agent.TradeSize,
		At:         r.o.now().UTC(),
	}
	r.o.metrics.RecordSignal(r.agent.ID, string(r.agent.Mode))

	switch r.agent.Mode {
	case models.ModePaper:
		r.dispatchPaper(ctx, sig)
	case models.ModeConfirmation:
		r.dispatchConfirmation(ctx, sig)
	case models.ModeAuto:
		r.dispatchAuto(ctx, sig)
	}
}

func (r *agentRunner) dispatchPaper(ctx context.Context, sig models.Signal) {
	if r.paper.open {
		if r.paper.direction == sig.Direction {
			return
		}
		// opposite signal closes the open paper position at the signal price
		pnl := (sig.Price - r.paper.entry) * r.paper.size
		if r.paper.direction == models.DirectionSell {
			pnl = -pnl
		}
		r.paper.realized += pnl
		r.paper.open = false
		r.o.journalEvent(ctx, models.TradeEvent{
			Kind:       models.EventPaperFill,
			AgentID:    sig.AgentID,
			Instrument: sig.Instrument,
			Direction:  sig.Direction,
			Size:       r.paper.size,
			Price:      sig.Price,
			Reason:     "close",
			At:         sig.At,
		})
	}
	r.paper = paperPosition{
		open:      true,
		direction: sig.Direction,
		size:      sig.Size,
		entry:     sig.Price,
		realized:  r.paper.realized,
	}
	r.o.journalEvent(ctx, models.TradeEvent{
		Kind:       models.EventPaperFill,
		AgentID:    sig.AgentID,
		Instrument: sig.Instrument,
		Direction:  sig.Direction,
		Size:       sig.Size,
		Price:      sig.Price,
		Reason:     "open",
		At:         sig.At,
	})
}

func (r *agentRunner) dispatchConfirmation(ctx context.Context, sig models.Signal) {
	trade := models.PendingTrade{
		AgentID:    sig.AgentID,
		Instrument: sig.Instrument,
		Direction:  sig.Direction,
		Size:       sig.Size,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Status:     models.TradePendingConfirmation,
		CreatedAt:  sig.At,
	}
	if err := r.o.trades.Create(ctx, &trade); err != nil {
		r.o.metrics.RecordError("trade_store")
		r.o.log.Error("pending trade create failed", logger.Error(err))
		return
	}
	r.o.journalEvent(ctx, models.TradeEvent{
		Kind:       models.EventPendingCreated,
		AgentID:    sig.AgentID,
		Instrument: sig.Instrument,
		Direction:  sig.Direction,
		Size:       sig.Size,
		Price:      sig.Price,
		At:         sig.At,
	})
}

func (r *agentRunner) dispatchAuto(ctx context.Context, sig models.Signal) {
	if err := r.risk.Allow(sig.Instrument, sig.Size*sig.Price); err != nil {
		limit := "unknown"
		var lerr *risk.LimitError
		if errors.As(err, &lerr) {
			limit = lerr.Limit
		}
		r.o.metrics.RecordRiskBlock(sig.AgentID, limit)
		r.o.journalEvent(ctx, models.TradeEvent{
			Kind:       models.EventRiskBlocked,
			AgentID:    sig.AgentID,
			Instrument: sig.Instrument,
			Direction:  sig.Direction,
			Size:       sig.Size,
			Price:      sig.Price,
			Reason:     err.Error(),
			At:         sig.At,
		})
		return
	}

	r.o.journalEvent(ctx, models.TradeEvent{
		Kind:       models.EventSubmitted,
		AgentID:    sig.AgentID,
		Instrument: sig.Instrument,
		Direction:  sig.Direction,
		Size:       sig.Size,
		Price:      sig.Price,
		At:         sig.At,
	})
	orderID, err := r.o.broker.Submit(ctx, models.OrderRequest{
		Instrument: sig.Instrument,
		Direction:  sig.Direction,
		Size:       sig.Size,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
	})
	if err != nil {
		var rej *broker.RejectionError
		if errors.As(err, &rej) {
			r.o.journalEvent(ctx, models.TradeEvent{
				Kind:       models.EventRiskBlocked,
				AgentID:    sig.AgentID,
				Instrument: sig.Instrument,
				Direction:  sig.Direction,
				Size:       sig.Size,
				Price:      sig.Price,
				Reason:     rej.Error(),
				At:         sig.At,
			})
			go r.o.MarkError(sig.AgentID, rej.Error())
			return
		}
		r.o.metrics.RecordError("broker")
		r.o.log.Error("order submit failed", logger.String("agent_id", sig.AgentID), logger.Error(err))
		go r.o.MarkError(sig.AgentID, err.Error())
		return
	}

	r.risk.AddPosition(sig.Instrument, sig.Size*sig.Price)
	r.o.journalEvent(ctx, models.TradeEvent{
		Kind:       models.EventExecuted,
		AgentID:    sig.AgentID,
		Instrument: sig.Instrument,
		Direction:  sig.Direction,
		Size:       sig.Size,
		Price:      sig.Price,
		OrderID:    orderID,
		At:         sig.At,
	})
}
