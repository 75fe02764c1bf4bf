package models

import "time"

// Tick is a single bid/ask quote observation. Ticks are ephemeral and never
// persisted; they only drive the partial-bar latency-hiding path.
type Tick struct {
	Instrument string    `json:"instrument"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	Spread     float64   `json:"spread"`
	ObservedAt time.Time `json:"observed_at"`
}

// Mid returns the quote mid price.
func (t Tick) Mid() float64 { return (t.Bid + t.Ask) / 2 }

// Bar is one OHLCV aggregate. OpenTime is the timeframe-aligned boundary and
// the unique key within a series.
type Bar struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// BarUpdate is an authoritative streamed update for one bar of a channel.
type BarUpdate struct {
	Instrument string `json:"instrument"`
	Timeframe  string `json:"timeframe"`
	Bar        Bar    `json:"bar"`
}

// ConnState describes the transport connection status.
type ConnState string

const (
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnReconnecting ConnState = "reconnecting"
	ConnDisconnected ConnState = "disconnected"
)

// StreamEvent is one frame delivered by the transport. Exactly one of the
// pointer fields is set.
type StreamEvent struct {
	Tick   *Tick
	Bar    *BarUpdate
	Status *ConnState
}

// Series is a read-only snapshot of the reconciled bar sequence for one
// (instrument, timeframe) pair, as handed to the API layer.
type Series struct {
	Instrument string    `json:"instrument"`
	Timeframe  string    `json:"timeframe"`
	Bars       []Bar     `json:"bars"`
	Live       bool      `json:"live"`
	Stale      bool      `json:"stale"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IndicatorSet is the derived indicator snapshot for a series. Slices are
// index-aligned with the series bars; undefined points are NaN.
type IndicatorSet struct {
	Instrument string    `json:"instrument"`
	Timeframe  string    `json:"timeframe"`
	MACD       []float64 `json:"macd"`
	Signal     []float64 `json:"signal"`
	Histogram  []float64 `json:"histogram"`
	FastMA     []float64 `json:"fast_ma"`
	SlowMA     []float64 `json:"slow_ma"`
}
