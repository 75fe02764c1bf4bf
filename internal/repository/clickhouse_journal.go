package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"TradePulse/internal/domain/models"
)

// ClickHouseJournal archives trade events. It implements the same Journal
// interface as the Kafka publisher, so it can serve either as the direct
// journal or as the sink behind the audit-topic consumer.
type ClickHouseJournal struct {
	db    *sql.DB
	table string
}

func NewClickHouseJournal(db *sql.DB, table string) *ClickHouseJournal {
	if table == "" {
		table = "trade_events"
	}
	return &ClickHouseJournal{db: db, table: table}
}

// Schema returns idempotent DDL for the archive table.
func (j *ClickHouseJournal) Schema() []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		at DateTime64(3),
		kind LowCardinality(String),
		agent_id String,
		instrument LowCardinality(String),
		direction LowCardinality(String),
		size Float64,
		price Float64,
		order_id String,
		reason String
	) ENGINE = MergeTree ORDER BY (agent_id, at)`, j.table)}
}

func (j *ClickHouseJournal) Record(ctx context.Context, ev models.TradeEvent) error {
	q := fmt.Sprintf("INSERT INTO %s (at, kind, agent_id, instrument, direction, size, price, order_id, reason) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", j.table)
	_, err := j.db.ExecContext(ctx, q,
		ev.At,
		string(ev.Kind),
		ev.AgentID,
		ev.Instrument,
		string(ev.Direction),
		ev.Size,
		ev.Price,
		ev.OrderID,
		ev.Reason,
	)
	return err
}

// ListByAgent returns an agent's archived events, newest first.
func (j *ClickHouseJournal) ListByAgent(ctx context.Context, agentID string, from, to time.Time, limit int) ([]models.TradeEvent, error) {
	q := fmt.Sprintf("SELECT at, kind, agent_id, instrument, direction, size, price, order_id, reason FROM %s WHERE agent_id = ? AND at >= ? AND at <= ? ORDER BY at DESC LIMIT ?", j.table)
	rows, err := j.db.QueryContext(ctx, q, agentID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.TradeEvent
	for rows.Next() {
		var ev models.TradeEvent
		var kind, direction string
		if err := rows.Scan(&ev.At, &kind, &ev.AgentID, &ev.Instrument, &direction, &ev.Size, &ev.Price, &ev.OrderID, &ev.Reason); err != nil {
			return nil, err
		}
		ev.Kind = models.TradeEventKind(kind)
		ev.Direction = models.Direction(direction)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (j *ClickHouseJournal) Health(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

func (j *ClickHouseJournal) Close() error {
	return nil // pool owned by pkg/clickhouse
}
