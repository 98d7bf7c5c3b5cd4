// Package broadcast carries "document changed" signals between the views of
// a ledger: in-process subscribers, websocket clients and, through Kafka,
// other processes sharing the same store.
package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Event announces that the document under Key was written at Version.
type Event struct {
	Key     string    `json:"key"`
	Version int64     `json:"version"`
	Origin  string    `json:"origin"` // writer instance id
	At      time.Time `json:"at"`
}

// Publisher sends change events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Hub fans events out to in-process subscribers. Slow subscribers miss
// events rather than blocking the publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber with the given channel buffer. The
// returned func unsubscribes and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan Event, buffer)
	n := h.next
	h.next++
	h.subs[n] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, n)
			close(ch)
		})
	}
}

// Publish delivers e to every subscriber with room in its buffer.
func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
