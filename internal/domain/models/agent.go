package models

import "time"

// AgentStatus is the lifecycle state of a trading agent.
type AgentStatus string

const (
	AgentStopped AgentStatus = "stopped"
	AgentRunning AgentStatus = "running"
	AgentPaused  AgentStatus = "paused"
	AgentError   AgentStatus = "error"
)

// AgentMode decides what happens when an agent's strategy emits a signal.
type AgentMode string

const (
	ModePaper        AgentMode = "paper"
	ModeConfirmation AgentMode = "confirmation"
	ModeAuto         AgentMode = "auto"
)

// IsValidAgentMode reports whether m is a known mode.
func IsValidAgentMode(m AgentMode) bool {
	switch m {
	case ModePaper, ModeConfirmation, ModeAuto:
		return true
	default:
		return false
	}
}

// Direction is the side of a trade.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// RiskConfig bounds what an auto-mode agent may submit to the broker.
type RiskConfig struct {
	MaxOpenPositions int     `json:"max_open_positions" yaml:"max_open_positions"`
	MaxExposure      float64 `json:"max_exposure" yaml:"max_exposure"`
	MaxDailyLoss     float64 `json:"max_daily_loss" yaml:"max_daily_loss"`
	MaxDrawdownPct   float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
}

// Agent is a strategy runner bound to one instrument/timeframe channel.
// Mutated only through orchestrator transitions.
type Agent struct {
	ID          string      `json:"id"`
	Status      AgentStatus `json:"status"`
	Mode        AgentMode   `json:"mode"`
	Instrument  string      `json:"instrument"`
	Timeframe   string      `json:"timeframe"`
	StrategyRef string      `json:"strategy_ref"`
	Risk        RiskConfig  `json:"risk"`
	TradeSize   float64     `json:"trade_size"`
	LastError   string      `json:"last_error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Signal is a trading intent emitted by a strategy evaluation.
type Signal struct {
	AgentID    string    `json:"agent_id"`
	Instrument string    `json:"instrument"`
	Direction  Direction `json:"direction"`
	Price      float64   `json:"price"`
	Size       float64   `json:"size"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	At         time.Time `json:"at"`
}

// OrderRequest is what gets submitted to the broker in auto mode.
type OrderRequest struct {
	Instrument string    `json:"instrument"`
	Direction  Direction `json:"direction"`
	Size       float64   `json:"size"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
}
