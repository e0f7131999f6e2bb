// Package notify delivers friend change events to connected clients.
//
// A Bus fans events out to per-user subscriptions inside one process. A
// RedisRelay carries events between processes and feeds the local Bus.
// Delivery is at most once and best effort: a full subscriber buffer drops
// the event, and clients reconcile by re-fetching.
package notify

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/sipstreak/internal/metrics"
	"github.com/jason-s-yu/sipstreak/internal/models"
)

// DefaultBuffer is the per-subscription channel capacity.
const DefaultBuffer = 16

// Bus is an in-process observer registry keyed by user id.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*Subscription]struct{}
	buffer int
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		subs:   make(map[uuid.UUID]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscription receives the events addressed to one user until Close.
type Subscription struct {
	UserID uuid.UUID

	ch   chan models.Event
	bus  *Bus
	once sync.Once
}

// Events is closed once the subscription is closed.
func (s *Subscription) Events() <-chan models.Event {
	return s.ch
}

// Close unsubscribes; it is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.remove(s)
	})
}

// Subscribe registers a new subscription for userID. The caller must Close it.
func (b *Bus) Subscribe(userID uuid.UUID) *Subscription {
	sub := &Subscription{
		UserID: userID,
		ch:     make(chan models.Event, b.buffer),
		bus:    b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[userID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[userID] = set
	}
	set[sub] = struct{}{}
	return sub
}

func (b *Bus) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[sub.UserID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sub.UserID)
		}
	}
	close(sub.ch)
}

// Subscribers returns the number of open subscriptions for userID.
func (b *Bus) Subscribers(userID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}

// Publish hands ev to every subscription of every recipient without
// blocking. It never fails; the error return satisfies friends.Relay.
func (b *Bus) Publish(ctx context.Context, ev models.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{}, len(ev.Recipients))
	for _, uid := range ev.Recipients {
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}

		for sub := range b.subs[uid] {
			select {
			case sub.ch <- ev:
				metrics.RecordNotification("delivered")
			default:
				metrics.RecordNotification("dropped")
			}
		}
	}
	return nil
}
