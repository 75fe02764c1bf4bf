package usecase

import (
	"context"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	"TradePulse/pkg/logger"
)

// Collector is the single consumer of the market stream. Every event goes
// through two paths: the book (chart state, serialized per key) and the
// subscription fan-out (agent leases).
type Collector struct {
	stream  drepo.MarketStream
	book    *Book
	subs    *SubscriptionManager
	metrics drepo.Metrics
	log     *logger.Logger
}

func NewCollector(stream drepo.MarketStream, book *Book, subs *SubscriptionManager, metrics drepo.Metrics, log *logger.Logger) *Collector {
	return &Collector{stream: stream, book: book, subs: subs, metrics: metrics, log: log}
}

func (c *Collector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	events, errs := c.stream.Events(ctx)
	go c.consume(ctx, events, errs)
	go c.book.Run(ctx)
	return nil
}

func (c *Collector) consume(ctx context.Context, events <-chan models.StreamEvent, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if ok && err == nil {
				continue
			}
			if err != nil {
				c.metrics.RecordError("stream")
				c.log.Warn("stream error, reconnecting", logger.Error(err))
			}
			if rerr := c.stream.Reconnect(ctx); rerr != nil {
				c.log.Error("reconnect failed", logger.Error(rerr))
				select {
				case <-ctx.Done():
					return
				case <-time.After(3 * time.Second):
				}
				continue
			}
			// reconnected: events channels were re-created by the transport
			events, errs = c.stream.Events(ctx)
			st := models.ConnConnected
			ev := models.StreamEvent{Status: &st}
			c.book.Dispatch(ev)
			c.subs.Broadcast(ev)
		case ev, ok := <-events:
			if !ok {
				// read loop exited; wait for the error branch to reconnect
				events = nil
				continue
			}
			c.book.Dispatch(ev)
			c.subs.Broadcast(ev)
			if ev.Tick != nil {
				c.metrics.RecordLastPrice(ev.Tick.Instrument, ev.Tick.Mid())
			}
		}
	}
}

func (c *Collector) Shutdown(ctx context.Context) error {
	return c.stream.Close()
}
