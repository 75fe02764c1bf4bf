package repository

import (
	"context"

	"TradePulse/internal/domain/models"
	pkgkafka "TradePulse/pkg/kafka"
)

// KafkaJournal publishes trade events to the audit topic. Events are keyed
// by agent so one agent's history stays ordered within a partition.
type KafkaJournal struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaJournal(producer *pkgkafka.Producer, topic string) *KafkaJournal {
	return &KafkaJournal{producer: producer, topic: topic}
}

func (j *KafkaJournal) Record(ctx context.Context, ev models.TradeEvent) error {
	return j.producer.Publish(ctx, j.topic, []byte(ev.AgentID), ev)
}

func (j *KafkaJournal) Close() error {
	return j.producer.Close()
}
