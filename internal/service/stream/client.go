package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	"TradePulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a MarketStream over a single duplex WebSocket. All
// subscribed (instrument, timeframe) channels share the connection; ticks
// and bar updates arrive as JSON frames.
type Client struct {
	url            string
	apiKey         string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	state     models.ConnState
	channels  map[channelKey]struct{}
	statusSub chan models.ConnState
}

type channelKey struct {
	instrument string
	timeframe  drepo.Timeframe
}

// New creates a new stream client.
func New(url, apiKey string, reconnectDelay, pingInterval time.Duration, log *logger.Logger) *Client {
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		url:            url,
		apiKey:         apiKey,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
		state:          models.ConnDisconnected,
		channels:       make(map[channelKey]struct{}),
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	c.setState(models.ConnConnecting)
	u := c.url
	if c.apiKey != "" {
		u = fmt.Sprintf("%s?token=%s", c.url, c.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		c.setState(models.ConnDisconnected)
		return fmt.Errorf("stream connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(models.ConnConnected)
	c.log.Info("stream connected", logger.String("url", c.url))
	return nil
}

type controlFrame struct {
	Type       string `json:"type"`
	Instrument string `json:"instrument"`
	Timeframe  string `json:"timeframe"`
}

// Subscribe opens the channel for one (instrument, timeframe) pair.
func (c *Client) Subscribe(ctx context.Context, instrument string, tf drepo.Timeframe) error {
	c.mu.Lock()
	conn := c.conn
	c.channels[channelKey{instrument, tf}] = struct{}{}
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("stream not connected")
	}
	msg := controlFrame{Type: "subscribe", Instrument: instrument, Timeframe: string(tf)}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe %s/%s: %w", instrument, tf, err)
	}
	c.log.Debug("subscribed", logger.String("instrument", instrument), logger.String("tf", string(tf)))
	return nil
}

// Unsubscribe closes the channel for one (instrument, timeframe) pair.
func (c *Client) Unsubscribe(ctx context.Context, instrument string, tf drepo.Timeframe) error {
	c.mu.Lock()
	conn := c.conn
	delete(c.channels, channelKey{instrument, tf})
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	msg := controlFrame{Type: "unsubscribe", Instrument: instrument, Timeframe: string(tf)}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("unsubscribe %s/%s: %w", instrument, tf, err)
	}
	return nil
}

// wire frames

type wireFrame struct {
	Type       string  `json:"type"`
	Instrument string  `json:"instrument"`
	Timeframe  string  `json:"timeframe"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	Spread     float64 `json:"spread"`
	ObservedAt int64   `json:"observed_at"` // ms
	OpenTime   int64   `json:"open_time"`   // ms
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
	State      string  `json:"state"`
}

// decodeFrame turns one wire frame into a stream event. Unknown frame types
// return (zero, false).
func decodeFrame(b []byte) (models.StreamEvent, bool) {
	var f wireFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return models.StreamEvent{}, false
	}
	switch f.Type {
	case "tick":
		if f.Instrument == "" || f.Spread < 0 {
			return models.StreamEvent{}, false
		}
		return models.StreamEvent{Tick: &models.Tick{
			Instrument: f.Instrument,
			Bid:        f.Bid,
			Ask:        f.Ask,
			Spread:     f.Spread,
			ObservedAt: time.UnixMilli(f.ObservedAt).UTC(),
		}}, true
	case "bar_update":
		if f.Instrument == "" || f.Timeframe == "" {
			return models.StreamEvent{}, false
		}
		return models.StreamEvent{Bar: &models.BarUpdate{
			Instrument: f.Instrument,
			Timeframe:  f.Timeframe,
			Bar: models.Bar{
				OpenTime: time.UnixMilli(f.OpenTime).UTC(),
				Open:     f.Open,
				High:     f.High,
				Low:      f.Low,
				Close:    f.Close,
				Volume:   f.Volume,
			},
		}}, true
	case "status":
		st := models.ConnState(f.State)
		return models.StreamEvent{Status: &st}, true
	default:
		return models.StreamEvent{}, false
	}
}

// Events streams decoded events and read errors. The returned channels are
// closed when the read loop exits.
func (c *Client) Events(ctx context.Context) (<-chan models.StreamEvent, <-chan error) {
	events := make(chan models.StreamEvent, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				errs <- fmt.Errorf("stream conn nil")
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				c.setState(models.ConnDisconnected)
				st := models.ConnDisconnected
				events <- models.StreamEvent{Status: &st}
				errs <- fmt.Errorf("stream read: %w", err)
				return
			}
			ev, ok := decodeFrame(b)
			if !ok {
				continue
			}
			select {
			case events <- ev:
			default:
				// drop ticks on backpressure; bar updates displace the
				// oldest buffered event instead
				if ev.Bar != nil {
					select {
					case <-events:
					default:
					}
					select {
					case events <- ev:
					default:
					}
				}
			}
		}
	}()

	return events, errs
}

// Reconnect closes, redials after the configured delay, and re-subscribes
// every channel that was open.
func (c *Client) Reconnect(ctx context.Context) error {
	c.setState(models.ConnReconnecting)
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	channels := make([]channelKey, 0, len(c.channels))
	for k := range c.channels {
		channels = append(channels, k)
	}
	c.mu.Unlock()

	for _, k := range channels {
		if err := c.Subscribe(ctx, k.instrument, k.timeframe); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	c.setState(models.ConnDisconnected)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// State reports the connection status.
func (c *Client) State() models.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s models.ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
