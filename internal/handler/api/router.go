package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Router composes all API handlers behind one route registration.
type Router struct {
	market *MarketHandler
	agents *AgentsHandler
	trades *TradesHandler
	health func() error
}

func NewRouter(market *MarketHandler, agents *AgentsHandler, trades *TradesHandler, health func() error) *Router {
	return &Router{market: market, agents: agents, trades: trades, health: health}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	r.market.RegisterRoutes(e)
	r.agents.RegisterRoutes(e)
	r.trades.RegisterRoutes(e)

	e.GET("/health", func(c echo.Context) error {
		if r.health != nil {
			if err := r.health(); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
