package usecase

import (
	"context"
	"sync"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	"TradePulse/pkg/logger"
)

// ConfirmationService owns the approve/reject queue for confirmation-mode
// agents. The pending list is re-polled on an interval, but only while at
// least one confirmation agent is running; with none the loop idles.
type ConfirmationService struct {
	trades   drepo.TradeStore
	broker   drepo.Broker
	journal  drepo.Journal
	metrics  drepo.Metrics
	log      *logger.Logger
	interval time.Duration
	now      func() time.Time

	onExecFailure func(agentID, reason string)

	mu      sync.Mutex
	active  map[string]struct{} // running confirmation agents
	wake    chan struct{}
	pending []models.PendingTrade
	fresh   time.Time
}

func NewConfirmationService(
	trades drepo.TradeStore,
	brk drepo.Broker,
	journal drepo.Journal,
	metrics drepo.Metrics,
	log *logger.Logger,
	interval time.Duration,
) *ConfirmationService {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &ConfirmationService{
		trades:   trades,
		broker:   brk,
		journal:  journal,
		metrics:  metrics,
		log:      log,
		interval: interval,
		now:      time.Now,
		active:   make(map[string]struct{}),
		wake:     make(chan struct{}, 1),
	}
}

// SetExecutionFailureHandler registers the callback invoked when an approved
// trade fails at the broker. Must be set before Run.
func (s *ConfirmationService) SetExecutionFailureHandler(f func(agentID, reason string)) {
	s.onExecFailure = f
}

// AgentStarted marks one confirmation agent as running.
func (s *ConfirmationService) AgentStarted(agentID string) {
	s.mu.Lock()
	s.active[agentID] = struct{}{}
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// AgentStopped marks one confirmation agent as no longer running.
func (s *ConfirmationService) AgentStopped(agentID string) {
	s.mu.Lock()
	delete(s.active, agentID)
	s.mu.Unlock()
}

// Polling reports whether the refresh loop is currently active.
func (s *ConfirmationService) Polling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) > 0
}

// Run drives the poll loop until ctx is cancelled.
func (s *ConfirmationService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			s.refresh(ctx)
		case <-ticker.C:
			if s.Polling() {
				s.refresh(ctx)
			}
		}
	}
}

func (s *ConfirmationService) refresh(ctx context.Context) {
	pending, err := s.trades.ListPending(ctx)
	if err != nil {
		s.metrics.RecordError("confirm_poll")
		s.log.Warn("pending trade poll failed", logger.Error(err))
		return
	}
	s.mu.Lock()
	s.pending = pending
	s.fresh = s.now()
	s.mu.Unlock()
}

// ListPending returns the open confirmation queue. The polled snapshot is
// served while fresh; otherwise the store is read directly.
func (s *ConfirmationService) ListPending(ctx context.Context) ([]models.PendingTrade, error) {
	s.mu.Lock()
	if len(s.active) > 0 && s.now().Sub(s.fresh) < s.interval {
		out := make([]models.PendingTrade, len(s.pending))
		copy(out, s.pending)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()
	return s.trades.ListPending(ctx)
}

// Approve resolves a pending trade as approved and submits it to the broker.
// Losing a resolution race returns the already-final trade unchanged; the
// broker is only called by the winner.
func (s *ConfirmationService) Approve(ctx context.Context, id string) (models.PendingTrade, error) {
	trade, won, err := s.trades.Resolve(ctx, id, models.TradeApproved)
	if err != nil {
		return models.PendingTrade{}, err
	}
	if !won {
		return trade, nil
	}

	s.journalRecord(ctx, models.TradeEvent{
		Kind:       models.EventResolved,
		AgentID:    trade.AgentID,
		Instrument: trade.Instrument,
		Direction:  trade.Direction,
		Size:       trade.Size,
		Reason:     string(models.TradeApproved),
		At:         s.now().UTC(),
	})

	s.journalRecord(ctx, models.TradeEvent{
		Kind:       models.EventSubmitted,
		AgentID:    trade.AgentID,
		Instrument: trade.Instrument,
		Direction:  trade.Direction,
		Size:       trade.Size,
		At:         s.now().UTC(),
	})
	orderID, err := s.broker.Submit(ctx, models.OrderRequest{
		Instrument: trade.Instrument,
		Direction:  trade.Direction,
		Size:       trade.Size,
		StopLoss:   trade.StopLoss,
		TakeProfit: trade.TakeProfit,
	})
	if err != nil {
		s.metrics.RecordError("confirm_execute")
		s.log.Error("approved trade execution failed",
			logger.String("trade_id", trade.ID), logger.Error(err))
		if s.onExecFailure != nil {
			s.onExecFailure(trade.AgentID, err.Error())
		}
		return trade, nil
	}

	executed, err := s.trades.MarkExecuted(ctx, id)
	if err != nil {
		return trade, err
	}
	s.journalRecord(ctx, models.TradeEvent{
		Kind:       models.EventExecuted,
		AgentID:    trade.AgentID,
		Instrument: trade.Instrument,
		Direction:  trade.Direction,
		Size:       trade.Size,
		OrderID:    orderID,
		At:         s.now().UTC(),
	})
	return executed, nil
}

// Reject resolves a pending trade as rejected. Idempotent the same way
// Approve is.
func (s *ConfirmationService) Reject(ctx context.Context, id string) (models.PendingTrade, error) {
	trade, won, err := s.trades.Resolve(ctx, id, models.TradeRejected)
	if err != nil {
		return models.PendingTrade{}, err
	}
	if won {
		s.journalRecord(ctx, models.TradeEvent{
			Kind:       models.EventResolved,
			AgentID:    trade.AgentID,
			Instrument: trade.Instrument,
			Direction:  trade.Direction,
			Size:       trade.Size,
			Reason:     string(models.TradeRejected),
			At:         s.now().UTC(),
		})
	}
	return trade, nil
}

func (s *ConfirmationService) journalRecord(ctx context.Context, ev models.TradeEvent) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(ctx, ev); err != nil {
		s.metrics.RecordError("journal")
		s.log.Warn("journal record failed", logger.Error(err))
	}
}
