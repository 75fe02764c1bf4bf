package usecase

import (
	"context"
	"fmt"
	"sync"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
)

// Lease is one consumer's hold on a transport channel. Event leases carry a
// buffered read-only view of the stream; control leases only pin the channel
// open. Release through the manager is idempotent.
type Lease struct {
	key      Key
	C        <-chan models.StreamEvent
	ch       chan models.StreamEvent
	released bool
}

// Key returns the channel this lease pins.
func (l *Lease) Key() Key { return l.key }

// SubscriptionManager reference-counts (instrument, timeframe) transport
// channels across consumers. The first acquire opens the channel, the last
// release closes it. Timers and teardown are explicit transitions tied to
// the count, never side effects of unrelated cleanup.
type SubscriptionManager struct {
	stream  drepo.MarketStream
	metrics drepo.Metrics
	buffer  int

	mu     sync.Mutex
	refs   map[Key]int
	leases map[Key][]*Lease
}

func NewSubscriptionManager(stream drepo.MarketStream, metrics drepo.Metrics, buffer int) *SubscriptionManager {
	if buffer <= 0 {
		buffer = 256
	}
	return &SubscriptionManager{
		stream:  stream,
		metrics: metrics,
		buffer:  buffer,
		refs:    make(map[Key]int),
		leases:  make(map[Key][]*Lease),
	}
}

// AcquireControl pins the channel open without consuming events.
func (m *SubscriptionManager) AcquireControl(ctx context.Context, key Key) (*Lease, error) {
	return m.acquire(ctx, key, false)
}

// AcquireEvents pins the channel open and returns a lease whose C delivers
// the channel's events. Bar updates are always delivered; ticks are dropped
// when the consumer lags.
func (m *SubscriptionManager) AcquireEvents(ctx context.Context, key Key) (*Lease, error) {
	return m.acquire(ctx, key, true)
}

func (m *SubscriptionManager) acquire(ctx context.Context, key Key, events bool) (*Lease, error) {
	m.mu.Lock()
	first := m.refs[key] == 0
	m.refs[key]++
	lease := &Lease{key: key}
	if events {
		lease.ch = make(chan models.StreamEvent, m.buffer)
		lease.C = lease.ch
		m.leases[key] = append(m.leases[key], lease)
	}
	m.mu.Unlock()

	if first {
		if err := m.stream.Subscribe(ctx, key.Instrument, key.Timeframe); err != nil {
			_ = m.Release(ctx, lease)
			return nil, fmt.Errorf("subscribe %s: %w", key, err)
		}
	}
	return lease, nil
}

// Release drops one hold on the lease's channel, unsubscribing from the
// transport when the last consumer detaches.
func (m *SubscriptionManager) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}

	m.mu.Lock()
	if lease.released {
		m.mu.Unlock()
		return nil
	}
	lease.released = true
	m.refs[lease.key]--
	last := m.refs[lease.key] == 0
	if last {
		delete(m.refs, lease.key)
	}
	if lease.ch != nil {
		held := m.leases[lease.key]
		for i, l := range held {
			if l == lease {
				m.leases[lease.key] = append(held[:i], held[i+1:]...)
				break
			}
		}
		if len(m.leases[lease.key]) == 0 {
			delete(m.leases, lease.key)
		}
		// The channel is left open; a broadcast that already collected this
		// lease may still complete a buffered send. Consumers exit via their
		// own stop signal, not channel close.
	}
	m.mu.Unlock()

	if last {
		if err := m.stream.Unsubscribe(ctx, lease.key.Instrument, lease.key.Timeframe); err != nil {
			return fmt.Errorf("unsubscribe %s: %w", lease.key, err)
		}
	}
	return nil
}

// StreamState reports the transport's current connection state.
func (m *SubscriptionManager) StreamState() models.ConnState {
	return m.stream.State()
}

// Refs returns the current consumer count for key.
func (m *SubscriptionManager) Refs(key Key) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs[key]
}

// Broadcast fans one event out to every event lease whose key it matches.
// Ticks match by instrument across timeframes; bar updates match the exact
// key. The broadcaster never blocks: a full consumer drops ticks (recorded)
// while bar updates overwrite the oldest buffered event.
func (m *SubscriptionManager) Broadcast(ev models.StreamEvent) {
	m.mu.Lock()
	var targets []*Lease
	switch {
	case ev.Status != nil:
		for _, held := range m.leases {
			targets = append(targets, held...)
		}
	case ev.Bar != nil:
		key := Key{Instrument: ev.Bar.Instrument, Timeframe: drepo.Timeframe(ev.Bar.Timeframe)}
		targets = append(targets, m.leases[key]...)
	case ev.Tick != nil:
		for key, held := range m.leases {
			if key.Instrument == ev.Tick.Instrument {
				targets = append(targets, held...)
			}
		}
	}
	m.mu.Unlock()

	for _, l := range targets {
		select {
		case l.ch <- ev:
		default:
			if ev.Bar == nil {
				m.metrics.RecordDiscarded("lease_backpressure")
				continue
			}
			// Make room for the authoritative update by shedding the oldest
			// buffered event.
			select {
			case <-l.ch:
			default:
			}
			select {
			case l.ch <- ev:
			default:
				m.metrics.RecordDiscarded("lease_backpressure")
			}
		}
	}
}
