package usecase

import (
	"context"
	"encoding/json"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	pkgkafka "TradePulse/pkg/kafka"
)

// JournalArchiver consumes the audit topic and writes events to the archive.
// Runs as a kafka consumer handler so the hot trading path only ever pays
// for the producer publish.
type JournalArchiver struct {
	topic   string
	archive drepo.Journal
	metrics drepo.Metrics
}

func NewJournalArchiver(topic string, archive drepo.Journal, metrics drepo.Metrics) *JournalArchiver {
	return &JournalArchiver{topic: topic, archive: archive, metrics: metrics}
}

func (a *JournalArchiver) Topic() string { return a.topic }

func (a *JournalArchiver) Handle(ctx context.Context, b []byte) error {
	var ev models.TradeEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		a.metrics.RecordError("archive_unmarshal")
		return err
	}

	start := time.Now()
	err := a.archive.Record(ctx, ev)
	a.metrics.RecordLatency("archive_insert", time.Since(start).Seconds())
	if err != nil {
		a.metrics.RecordError("archive_insert")
		return err
	}
	if !ev.At.IsZero() {
		a.metrics.RecordLatency("journal_e2e", time.Since(ev.At).Seconds())
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*JournalArchiver)(nil)
