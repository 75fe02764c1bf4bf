package repository

import (
	"context"
	"errors"
	"testing"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
)

func seedPending(t *testing.T, s *TradeStore, agentID string) models.PendingTrade {
	t.Helper()
	trade := models.PendingTrade{
		AgentID:    agentID,
		Instrument: "EUR_USD",
		Direction:  models.DirectionBuy,
		Size:       1,
	}
	if err := s.Create(context.Background(), &trade); err != nil {
		t.Fatalf("create: %v", err)
	}
	return trade
}

func TestCreateAssignsIdentity(t *testing.T) {
	s := NewTradeStore()
	a := seedPending(t, s, "agent-1")
	b := seedPending(t, s, "agent-1")

	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("ids not unique: %q, %q", a.ID, b.ID)
	}
	if a.Status != models.TradePendingConfirmation {
		t.Fatalf("default status = %s", a.Status)
	}
	if a.CreatedAt.IsZero() {
		t.Fatalf("created_at not set")
	}
}

func TestGetUnknown(t *testing.T) {
	s := NewTradeStore()
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, drepo.ErrTradeNotFound) {
		t.Fatalf("err = %v, want ErrTradeNotFound", err)
	}
}

func TestResolveFirstWriterWins(t *testing.T) {
	s := NewTradeStore()
	ctx := context.Background()
	trade := seedPending(t, s, "agent-1")

	got, won, err := s.Resolve(ctx, trade.ID, models.TradeApproved)
	if err != nil || !won {
		t.Fatalf("first resolve: won=%v err=%v", won, err)
	}
	if got.Status != models.TradeApproved || got.ResolvedAt.IsZero() {
		t.Fatalf("resolved trade = %+v", got)
	}

	// The second writer loses and observes the first resolution.
	got, won, err = s.Resolve(ctx, trade.ID, models.TradeRejected)
	if err != nil || won {
		t.Fatalf("second resolve: won=%v err=%v", won, err)
	}
	if got.Status != models.TradeApproved {
		t.Fatalf("losing resolve observed %s", got.Status)
	}
}

func TestMarkExecutedRequiresApproval(t *testing.T) {
	s := NewTradeStore()
	ctx := context.Background()
	trade := seedPending(t, s, "agent-1")

	got, err := s.MarkExecuted(ctx, trade.ID)
	if err != nil {
		t.Fatalf("mark executed: %v", err)
	}
	if got.Status != models.TradePendingConfirmation {
		t.Fatalf("unapproved trade moved to %s", got.Status)
	}

	if _, _, err := s.Resolve(ctx, trade.ID, models.TradeApproved); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	got, err = s.MarkExecuted(ctx, trade.ID)
	if err != nil {
		t.Fatalf("mark executed: %v", err)
	}
	if got.Status != models.TradeExecuted {
		t.Fatalf("status = %s, want executed", got.Status)
	}
}

func TestListPendingAndByAgent(t *testing.T) {
	s := NewTradeStore()
	ctx := context.Background()
	a := seedPending(t, s, "agent-1")
	seedPending(t, s, "agent-2")
	resolved := seedPending(t, s, "agent-1")
	if _, _, err := s.Resolve(ctx, resolved.ID, models.TradeRejected); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	pending, err := s.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}

	mine, err := s.ListByAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("list by agent: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("agent trades = %d, want 2 including resolved", len(mine))
	}
	if mine[0].ID != a.ID && mine[1].ID != a.ID {
		t.Fatalf("agent listing missing %s", a.ID)
	}
}
