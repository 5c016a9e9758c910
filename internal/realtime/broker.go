package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Publisher is the write-side view of the broker used by services.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Relay forwards locally published events to other instances.
type Relay interface {
	Forward(ctx context.Context, e Event) error
}

// Filter selects the events a subscription wants. A nil Filter accepts all.
type Filter func(Event) bool

// Broker fans out events to subscriptions. It is safe for concurrent use.
type Broker struct {
	buffer int

	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	relay  Relay
	closed bool
}

// NewBroker returns a broker whose subscriptions hold at most buffer pending
// events before overflowing into a resync.
func NewBroker(buffer int) *Broker {
	if buffer < 1 {
		buffer = 1
	}
	return &Broker{buffer: buffer, subs: make(map[*Subscription]struct{})}
}

// SetRelay installs r as the cross-instance forwarder.
func (b *Broker) SetRelay(r Relay) {
	b.mu.Lock()
	b.relay = r
	b.mu.Unlock()
}

// Subscribe registers a new subscription. On a closed broker the returned
// subscription is already closed.
func (b *Broker) Subscribe(f Filter) *Subscription {
	s := &Subscription{
		broker: b,
		filter: f,
		limit:  b.buffer,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.closed = true
		close(s.done)
		return s
	}
	b.subs[s] = struct{}{}
	activeSubscriptions.Inc()
	return s
}

// Publish delivers e locally and hands it to the relay, if any. Relay errors
// are logged and never fail the caller: the write already committed.
func (b *Broker) Publish(ctx context.Context, e Event) {
	b.deliver(e, "local")

	b.mu.RLock()
	r := b.relay
	b.mu.RUnlock()
	if r == nil {
		return
	}
	if err := r.Forward(ctx, e); err != nil {
		log.Warn().Err(err).Str("table", e.Table).Msg("realtime relay forward failed")
	}
}

// Deliver hands e to local subscriptions only. Relays call it for events
// that originated on another instance.
func (b *Broker) Deliver(e Event) { b.deliver(e, "relay") }

func (b *Broker) deliver(e Event, origin string) {
	eventsPublished.WithLabelValues(e.Table, origin).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		if s.filter == nil || s.filter(e) {
			s.offer(e)
		}
	}
}

// Close closes every subscription and rejects new ones.
func (b *Broker) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.closed = true
	b.mu.Unlock()

	for s := range subs {
		s.shutdown()
		activeSubscriptions.Dec()
	}
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	_, ok := b.subs[s]
	delete(b.subs, s)
	b.mu.Unlock()
	if ok {
		activeSubscriptions.Dec()
	}
}

// Subscription is a coalescing, bounded event queue. Ready fires (at most one
// pending signal) whenever events or a resync are waiting; the consumer then
// calls Drain.
type Subscription struct {
	broker *Broker
	filter Filter
	limit  int
	notify chan struct{}
	done   chan struct{}

	mu     sync.Mutex
	queue  []Event
	resync bool
	closed bool
}

// Ready signals that Drain has something to return.
func (s *Subscription) Ready() <-chan struct{} { return s.notify }

// Done is closed once the subscription is closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Drain returns the queued events in publish order and whether events were
// dropped since the last call. After a resync the caller must re-derive its
// state from the store; the returned events are still newer than the drop.
func (s *Subscription) Drain() ([]Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events, resync := s.queue, s.resync
	s.queue, s.resync = nil, false
	return events, resync
}

// Close unsubscribes. It is idempotent.
func (s *Subscription) Close() {
	s.broker.remove(s)
	s.shutdown()
}

func (s *Subscription) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.queue = nil
	close(s.done)
}

func (s *Subscription) offer(e Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.limit {
		s.queue = s.queue[:0]
		if !s.resync {
			resyncs.Inc()
		}
		s.resync = true
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}
