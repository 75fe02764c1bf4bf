package models

// Requests for the HTTP API. Defined in domain for consistency and reuse.

type SeriesRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	TF         string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h 4h"`
	Limit      int    `query:"limit" json:"limit" default:"300" validate:"gte=1,lte=5000"`
}

type IndicatorsRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	TF         string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h 4h"`
	Fast       int    `query:"fast" json:"fast" default:"12" validate:"gte=2,lte=200"`
	Slow       int    `query:"slow" json:"slow" default:"26" validate:"gte=2,lte=400"`
	Signal     int    `query:"signal" json:"signal" default:"9" validate:"gte=1,lte=100"`
}

type CreateAgentRequest struct {
	Mode        string     `json:"mode" validate:"required,oneof=paper confirmation auto"`
	Instrument  string     `json:"instrument" validate:"required"`
	TF          string     `json:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h 4h"`
	StrategyRef string     `json:"strategy_ref" validate:"required"`
	TradeSize   float64    `json:"trade_size" default:"1" validate:"gt=0"`
	Risk        RiskConfig `json:"risk"`
}
