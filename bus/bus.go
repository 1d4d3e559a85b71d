// Package bus propagates renewed credential pairs to in-process listeners.
//
// Delivery is synchronous and unbuffered: a subscriber registered after a
// publish does not see it. Consumers that need the current pair read the
// session store instead.
package bus

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-gate/internal/metrics"
	"github.com/jrsteele09/go-session-gate/token"
)

// EventTokenRefreshed is the name of the event emitted after a successful renewal
const EventTokenRefreshed = "session:token-refreshed"

// Event carries a renewed pair for one session
type Event struct {
	Name      string     `json:"name"`
	SessionID string     `json:"sessionId"`
	Pair      token.Pair `json:"pair"`
	Origin    string     `json:"origin,omitempty"` // Set on events relayed from another process
}

type Handler func(Event)

// Subscription identifies a registered handler
type Subscription struct {
	id string
}

type subscriber struct {
	id      string
	handler Handler
}

// Publisher is the publishing side of the bus
type Publisher interface {
	Publish(sessionID string, pair token.Pair)
}

type Bus struct {
	mu          sync.RWMutex
	subscribers []subscriber
	metrics     *metrics.Metrics
}

type Option func(*Bus)

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

func New(options ...Option) *Bus {
	b := &Bus{}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Subscribe registers h for every subsequent event
func (b *Bus) Subscribe(h Handler) Subscription {
	sub := subscriber{id: uuid.New().String(), handler: h}

	b.mu.Lock()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()

	return Subscription{id: sub.id}
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subscribers {
		if s.id == sub.id {
			b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Publish notifies every current subscriber of a renewed pair
func (b *Bus) Publish(sessionID string, pair token.Pair) {
	b.PublishEvent(Event{Name: EventTokenRefreshed, SessionID: sessionID, Pair: pair})
}

// PublishEvent delivers ev to the subscribers registered at the time of the call,
// in subscription order. Handlers run outside the lock and may (un)subscribe.
func (b *Bus) PublishEvent(ev Event) {
	if ev.Name == "" {
		ev.Name = EventTokenRefreshed
	}

	b.mu.RLock()
	snapshot := make([]subscriber, len(b.subscribers))
	copy(snapshot, b.subscribers)
	b.mu.RUnlock()

	b.metrics.Published()
	for _, s := range snapshot {
		s.handler(ev)
	}
}

// Len returns the number of subscribers
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
