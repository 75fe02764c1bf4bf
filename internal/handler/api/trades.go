package api

import (
	"errors"

	drepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/usecase"
	xhttp "TradePulse/pkg/http"
	xlogger "TradePulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// TradesHandler serves the confirmation queue.
type TradesHandler struct {
	logger  *xlogger.Logger
	confirm *usecase.ConfirmationService
}

func NewTradesHandler(logger *xlogger.Logger, confirm *usecase.ConfirmationService) *TradesHandler {
	return &TradesHandler{logger: logger, confirm: confirm}
}

func (h *TradesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/trades")
	g.GET("/pending", h.Pending)
	g.POST("/:id/approve", h.Approve)
	g.POST("/:id/reject", h.Reject)
}

func (h *TradesHandler) Pending(c echo.Context) error {
	trades, err := h.confirm.ListPending(c.Request().Context())
	if err != nil {
		h.logger.Error("pending trades error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("pending trades unavailable"))
	}
	return xhttp.ListResponse(c, trades, int64(len(trades)))
}

// Approve resolves a trade. A repeat call, or a race lost to a reject, still
// returns 200 with the trade's actual final status.
func (h *TradesHandler) Approve(c echo.Context) error {
	trade, err := h.confirm.Approve(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.tradeError(c, err)
	}
	return xhttp.SuccessResponse(c, trade)
}

func (h *TradesHandler) Reject(c echo.Context) error {
	trade, err := h.confirm.Reject(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.tradeError(c, err)
	}
	return xhttp.SuccessResponse(c, trade)
}

func (h *TradesHandler) tradeError(c echo.Context, err error) error {
	if errors.Is(err, drepo.ErrTradeNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("trade not found"))
	}
	h.logger.Error("trade resolution error", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError(err.Error()))
}
