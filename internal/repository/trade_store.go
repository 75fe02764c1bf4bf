package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
)

// TradeStore keeps pending trades in memory. Resolve is first-writer-wins:
// the first terminal status sticks and every later attempt gets the stored
// record back with applied=false.
type TradeStore struct {
	mu     sync.Mutex
	trades map[string]models.PendingTrade
	seq    uint64
}

func NewTradeStore() *TradeStore {
	return &TradeStore{trades: make(map[string]models.PendingTrade)}
}

func (s *TradeStore) Create(ctx context.Context, trade *models.PendingTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if trade.ID == "" {
		s.seq++
		trade.ID = fmt.Sprintf("trade-%d-%d", time.Now().UnixMilli(), s.seq)
	}
	if trade.Status == "" {
		trade.Status = models.TradePendingConfirmation
	}
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = time.Now().UTC()
	}
	s.trades[trade.ID] = *trade
	return nil
}

func (s *TradeStore) Get(ctx context.Context, id string) (models.PendingTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return models.PendingTrade{}, drepo.ErrTradeNotFound
	}
	return t, nil
}

func (s *TradeStore) ListPending(ctx context.Context) ([]models.PendingTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PendingTrade, 0)
	for _, t := range s.trades {
		if t.Status == models.TradePendingConfirmation {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *TradeStore) ListByAgent(ctx context.Context, agentID string) ([]models.PendingTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PendingTrade, 0)
	for _, t := range s.trades {
		if t.AgentID == agentID {
			out = append(out, t)
		}
	}
	return out, nil
}

// Resolve moves a pending trade to a terminal status. The bool reports
// whether this call applied the transition; a trade already resolved keeps
// its first status.
func (s *TradeStore) Resolve(ctx context.Context, id string, status models.TradeStatus) (models.PendingTrade, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return models.PendingTrade{}, false, drepo.ErrTradeNotFound
	}
	if t.Status != models.TradePendingConfirmation {
		return t, false, nil
	}
	t.Status = status
	t.ResolvedAt = time.Now().UTC()
	s.trades[id] = t
	return t, true, nil
}

// MarkExecuted records broker acceptance of an approved trade.
func (s *TradeStore) MarkExecuted(ctx context.Context, id string) (models.PendingTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok {
		return models.PendingTrade{}, drepo.ErrTradeNotFound
	}
	if t.Status == models.TradeApproved {
		t.Status = models.TradeExecuted
		s.trades[id] = t
	}
	return t, nil
}
