package api

import (
	"context"
	"errors"
	"time"

	"TradePulse/internal/domain/models"
	"TradePulse/internal/repository"
	"TradePulse/internal/usecase"
	xhttp "TradePulse/pkg/http"
	xlogger "TradePulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AgentsHandler serves agent lifecycle endpoints.
type AgentsHandler struct {
	logger  *xlogger.Logger
	orch    *usecase.Orchestrator
	archive *repository.ClickHouseJournal // nil when archiving is disabled
}

func NewAgentsHandler(logger *xlogger.Logger, orch *usecase.Orchestrator, archive *repository.ClickHouseJournal) *AgentsHandler {
	return &AgentsHandler{logger: logger, orch: orch, archive: archive}
}

func (h *AgentsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/agents")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/start", h.transition(h.orch.Start))
	g.POST("/:id/stop", h.transition(h.orch.Stop))
	g.POST("/:id/pause", h.transition(h.orch.Pause))
	g.POST("/:id/resume", h.transition(h.orch.Resume))
	g.POST("/:id/acknowledge", h.transition(h.orch.Acknowledge))
	g.GET("/:id/events", h.Events)
}

func (h *AgentsHandler) Create(c echo.Context) error {
	req := &models.CreateAgentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	agent, err := h.orch.Create(c.Request().Context(), *req)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("create agent: %v", err))
	}
	return xhttp.CreatedResponse(c, agent)
}

func (h *AgentsHandler) List(c echo.Context) error {
	agents := h.orch.List(c.Request().Context())
	return xhttp.ListResponse(c, agents, int64(len(agents)))
}

func (h *AgentsHandler) Get(c echo.Context) error {
	agent, err := h.orch.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.agentError(c, err)
	}
	return xhttp.SuccessResponse(c, agent)
}

func (h *AgentsHandler) Delete(c echo.Context) error {
	if err := h.orch.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return h.agentError(c, err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *AgentsHandler) transition(op func(ctx context.Context, id string) (models.Agent, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		agent, err := op(c.Request().Context(), c.Param("id"))
		if err != nil {
			return h.agentError(c, err)
		}
		return xhttp.SuccessResponse(c, agent)
	}
}

// Events returns the archived trade events of one agent. Defaults to the
// last 24 hours when no range is given.
func (h *AgentsHandler) Events(c echo.Context) error {
	if h.archive == nil {
		return xhttp.SuccessResponse(c, []models.TradeEvent{})
	}
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), time.Now().UTC())
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), to.Add(-24*time.Hour))
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 500)
	events, err := h.archive.ListByAgent(c.Request().Context(), c.Param("id"), from, to, limit)
	if err != nil {
		h.logger.Error("agent events query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("events query failed"))
	}
	return xhttp.SuccessResponse(c, events)
}

func (h *AgentsHandler) agentError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrAgentNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("agent not found"))
	case errors.Is(err, usecase.ErrInvalidTransit), errors.Is(err, usecase.ErrAgentNotStopped):
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_CONFLICT", "", err.Error(), 409))
	default:
		h.logger.Error("agent operation error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError(err.Error()))
	}
}
