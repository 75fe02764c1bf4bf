package repository

import (
	"context"

	"TradePulse/internal/domain/models"
	"TradePulse/pkg/logger"
)

// LogJournal writes trade events to the structured log. Used when the Kafka
// audit stream is disabled.
type LogJournal struct {
	log *logger.Logger
}

func NewLogJournal(log *logger.Logger) *LogJournal {
	return &LogJournal{log: log}
}

func (j *LogJournal) Record(ctx context.Context, ev models.TradeEvent) error {
	j.log.Info("trade event",
		logger.String("kind", string(ev.Kind)),
		logger.String("agent_id", ev.AgentID),
		logger.String("instrument", ev.Instrument),
		logger.String("direction", string(ev.Direction)),
		logger.Float("size", ev.Size),
		logger.Float("price", ev.Price),
		logger.String("order_id", ev.OrderID),
		logger.String("reason", ev.Reason))
	return nil
}

func (j *LogJournal) Close() error { return nil }
