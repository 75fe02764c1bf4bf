package repository

import (
	"context"
	"errors"

	"TradePulse/internal/domain/models"
)

// ErrTradeNotFound is returned by TradeStore lookups for unknown ids.
var ErrTradeNotFound = errors.New("pending trade not found")

// MarketStream is the duplex transport delivering ticks and bar updates for
// all subscribed (instrument, timeframe) channels over one connection.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, instrument string, tf Timeframe) error
	Unsubscribe(ctx context.Context, instrument string, tf Timeframe) error
	Events(ctx context.Context) (<-chan models.StreamEvent, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	State() models.ConnState
}

// SnapshotSource retrieves a bounded window of closed historical bars,
// oldest first, for initial load and gap-filling fallback.
type SnapshotSource interface {
	Fetch(ctx context.Context, instrument string, tf Timeframe, count int) ([]models.Bar, error)
}

// Broker submits orders for auto-mode agents. A rejection is returned as an
// error distinguishable from transport failure via errors.As.
type Broker interface {
	Submit(ctx context.Context, req models.OrderRequest) (orderID string, err error)
}

// TradeStore owns pending trades. Resolve applies first-writer-wins: the
// returned trade carries the terminal status whether or not this call won,
// and the bool reports whether this call was the winner.
type TradeStore interface {
	Create(ctx context.Context, t *models.PendingTrade) error
	Get(ctx context.Context, id string) (models.PendingTrade, error)
	ListPending(ctx context.Context) ([]models.PendingTrade, error)
	ListByAgent(ctx context.Context, agentID string) ([]models.PendingTrade, error)
	Resolve(ctx context.Context, id string, status models.TradeStatus) (models.PendingTrade, bool, error)
	MarkExecuted(ctx context.Context, id string) (models.PendingTrade, error)
}

// Journal records trade events for audit.
type Journal interface {
	Record(ctx context.Context, ev models.TradeEvent) error
	Close() error
}

// Metrics is the domain-facing metrics recorder.
type Metrics interface {
	RecordBarApplied(instrument, tf string)
	RecordTickApplied(instrument string)
	RecordDiscarded(kind string)
	RecordFallbackFetch(instrument, tf string)
	RecordSignal(agentID, mode string)
	RecordRiskBlock(agentID, limit string)
	RecordError(kind string)
	RecordLastPrice(instrument string, price float64)
	RecordRunningAgents(n int)
	RecordLatency(op string, seconds float64)
}
