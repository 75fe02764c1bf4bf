package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"TradePulse/internal/domain/models"
	httpclient "TradePulse/pkg/http"
	"TradePulse/pkg/logger"
)

// RejectionError is a broker-side refusal of a well-formed order, as opposed
// to a transport or server failure. Callers distinguish it via errors.As.
type RejectionError struct {
	Code   string
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("order rejected (%s): %s", e.Code, e.Reason)
}

// Client submits orders to the execution venue.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
	log     *logger.Logger
}

func New(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    httpclient.NewClient(httpclient.WithTimeout(timeout)),
		log:     log,
	}
}

type orderPayload struct {
	Instrument string  `json:"instrument"`
	Direction  string  `json:"direction"`
	Size       float64 `json:"size"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
}

type orderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
}

// Submit places one order. A 2xx with status "rejected", or a 422, comes back
// as *RejectionError; anything else non-2xx is a plain error.
func (c *Client) Submit(ctx context.Context, req models.OrderRequest) (string, error) {
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}

	resp, err := c.http.SendRequest(ctx, &httpclient.RequestOptions{
		Method:  httpclient.MethodPost,
		URL:     fmt.Sprintf("%s/orders", c.baseURL),
		Headers: headers,
		Body: orderPayload{
			Instrument: req.Instrument,
			Direction:  string(req.Direction),
			Size:       req.Size,
			StopLoss:   req.StopLoss,
			TakeProfit: req.TakeProfit,
		},
	})
	if err != nil {
		return "", fmt.Errorf("submit order: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read order response: %w", err)
	}

	var out orderResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil && resp.StatusCode < 300 {
			return "", fmt.Errorf("decode order response: %w", err)
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity || out.Status == "rejected":
		c.log.Warn("order rejected",
			logger.String("instrument", req.Instrument),
			logger.String("code", out.Code),
			logger.String("reason", out.Reason))
		return "", &RejectionError{Code: out.Code, Reason: out.Reason}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("broker status %d: %s", resp.StatusCode, body)
	}

	return out.OrderID, nil
}
