package models

import "time"

// TradeStatus is the resolution state of a pending trade.
type TradeStatus string

const (
	TradePendingConfirmation TradeStatus = "pending_confirmation"
	TradeApproved            TradeStatus = "approved"
	TradeRejected            TradeStatus = "rejected"
	TradeExecuted            TradeStatus = "executed"
)

// IsTerminal reports whether the status can no longer change.
func (s TradeStatus) IsTerminal() bool {
	switch s {
	case TradeApproved, TradeRejected, TradeExecuted:
		return true
	default:
		return false
	}
}

// PendingTrade is a signal awaiting human approve/reject resolution.
// Resolved exactly once; a second resolution is a no-op.
type PendingTrade struct {
	ID         string      `json:"id"`
	AgentID    string      `json:"agent_id"`
	Instrument string      `json:"instrument"`
	Direction  Direction   `json:"direction"`
	Size       float64     `json:"size"`
	StopLoss   float64     `json:"stop_loss"`
	TakeProfit float64     `json:"take_profit"`
	Status     TradeStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	ResolvedAt time.Time   `json:"resolved_at,omitempty"`
}

// TradeEventKind classifies journal entries.
type TradeEventKind string

const (
	EventExecuted       TradeEventKind = "executed"
	EventPaperFill      TradeEventKind = "paper_fill"
	EventRiskBlocked    TradeEventKind = "risk_blocked"
	EventSubmitted      TradeEventKind = "submitted"
	EventPendingCreated TradeEventKind = "pending_created"
	EventResolved       TradeEventKind = "resolved"
)

// TradeEvent is the audit record for everything an agent does with a signal.
// Published to the event stream and archived in the journal.
type TradeEvent struct {
	Kind       TradeEventKind `json:"kind"`
	AgentID    string         `json:"agent_id"`
	Instrument string         `json:"instrument"`
	Direction  Direction      `json:"direction"`
	Size       float64        `json:"size"`
	Price      float64        `json:"price"`
	OrderID    string         `json:"order_id,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	At         time.Time      `json:"at"`
}
