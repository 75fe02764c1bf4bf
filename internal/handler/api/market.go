package api

import (
	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/service/indicator"
	"TradePulse/internal/usecase"
	xhttp "TradePulse/pkg/http"
	xlogger "TradePulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MarketHandler serves the chart-facing series and indicator endpoints.
type MarketHandler struct {
	logger *xlogger.Logger
	book   *usecase.Book
	stream drepo.MarketStream
}

func NewMarketHandler(logger *xlogger.Logger, book *usecase.Book, stream drepo.MarketStream) *MarketHandler {
	return &MarketHandler{logger: logger, book: book, stream: stream}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/series", h.Series)
	g.GET("/indicators", h.Indicators)
	g.GET("/stream/status", h.StreamStatus)
}

// Series activates the channel on first request and returns the reconciled
// bar sequence.
func (h *MarketHandler) Series(c echo.Context) error {
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key := usecase.Key{
		Instrument: req.Instrument,
		Timeframe:  drepo.NormalizeTimeframe(req.TF),
	}

	rec, err := h.book.Activate(c.Request().Context(), key)
	if err != nil {
		h.logger.Error("series activate error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("activate %s: %v", key, err))
	}

	series := rec.Snapshot()
	if req.Limit > 0 && len(series.Bars) > req.Limit {
		series.Bars = series.Bars[len(series.Bars)-req.Limit:]
	}
	return xhttp.SuccessResponse(c, series)
}

// Indicators returns MACD and moving averages for a series. Non-default
// periods are recomputed from the current snapshot.
func (h *MarketHandler) Indicators(c echo.Context) error {
	req := &models.IndicatorsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Fast >= req.Slow {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_PERIODS",
			Field:   "fast",
			Message: "fast period must be below slow period",
		}})
	}
	key := usecase.Key{
		Instrument: req.Instrument,
		Timeframe:  drepo.NormalizeTimeframe(req.TF),
	}

	rec, err := h.book.Activate(c.Request().Context(), key)
	if err != nil {
		h.logger.Error("indicators activate error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("activate %s: %v", key, err))
	}

	if req.Fast == indicator.DefaultFastPeriod &&
		req.Slow == indicator.DefaultSlowPeriod &&
		req.Signal == indicator.DefaultSignalPeriod {
		return xhttp.SuccessResponse(c, rec.Indicators())
	}

	// custom periods: recompute over the snapshot
	series := rec.Snapshot()
	eng := indicator.NewEngine(req.Fast, req.Slow, req.Signal)
	eng.Recompute(series.Bars)
	return xhttp.SuccessResponse(c, eng.Snapshot(key.Instrument, string(key.Timeframe)))
}

// StreamStatus reports the transport connection state.
func (h *MarketHandler) StreamStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"state": h.stream.State(),
	})
}
