package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	"TradePulse/pkg/cache"
	httpclient "TradePulse/pkg/http"
	"TradePulse/pkg/logger"
)

// Client fetches closed-bar snapshots from the history REST service. Results
// are cached so that repeated activations of the same channel within the TTL
// skip the upstream round trip.
type Client struct {
	baseURL  string
	http     *httpclient.Client
	cache    cache.Service
	cacheTTL time.Duration
	log      *logger.Logger
}

func New(baseURL string, timeout time.Duration, c cache.Service, cacheTTL time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cacheTTL <= 0 {
		// Must stay below the reconciler staleness window: a fallback fetch
		// served from cache would return the exact data that went stale.
		cacheTTL = 5 * time.Second
	}
	return &Client{
		baseURL:  baseURL,
		http:     httpclient.NewClient(httpclient.WithTimeout(timeout)),
		cache:    c,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

type snapshotBar struct {
	OpenTime int64   `json:"open_time"` // ms
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

type snapshotResponse struct {
	Instrument string        `json:"instrument"`
	Timeframe  string        `json:"timeframe"`
	Bars       []snapshotBar `json:"bars"`
}

// Fetch returns up to count closed bars, oldest first.
func (c *Client) Fetch(ctx context.Context, instrument string, tf drepo.Timeframe, count int) ([]models.Bar, error) {
	key := cache.GenerateKeyWithParams("snapshot", instrument, string(tf), count)
	if c.cache != nil {
		var cached []models.Bar
		if err := c.cache.Get(ctx, key, &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	var resp snapshotResponse
	err := c.http.SendAndParse(ctx, &httpclient.RequestOptions{
		Method: httpclient.MethodGet,
		URL:    fmt.Sprintf("%s/candles", c.baseURL),
		QueryParams: map[string][]string{
			"instrument": {instrument},
			"timeframe":  {string(tf)},
			"count":      {fmt.Sprintf("%d", count)},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot %s/%s: %w", instrument, tf, err)
	}

	bars := make([]models.Bar, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		bars = append(bars, models.Bar{
			OpenTime: time.UnixMilli(b.OpenTime).UTC(),
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			Volume:   b.Volume,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].OpenTime.Before(bars[j].OpenTime) })

	if c.cache != nil && len(bars) > 0 {
		if err := c.cache.Set(ctx, key, bars, c.cacheTTL); err != nil {
			c.log.Warn("snapshot cache set failed", logger.Error(err))
		}
	}
	return bars, nil
}
