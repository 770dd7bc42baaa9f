// Package hub implements the central event hub for mdview.
//
// Delivery is synchronous: Publish invokes every subscriber on the calling
// goroutine and returns only after all of them have seen the event. This
// preserves the emitter contract the session core relies on: a mutation and
// the handlers it triggers run to completion before the next operation.
package hub

import (
	"sync"

	"github.com/mdview/mdview/internal/domain/events"
	"github.com/mdview/mdview/internal/domain/ports"
	"github.com/rs/zerolog/log"
)

// Hub is the central event dispatcher that fans out events to all subscribers.
type Hub struct {
	// mu protects subscribers and running
	mu sync.RWMutex

	// subscribers holds all active subscribers
	subscribers map[string]ports.Subscriber

	// running indicates if the hub accepts events
	running bool
}

// New creates a new Hub.
func New() *Hub {
	return &Hub{
		subscribers: make(map[string]ports.Subscriber),
	}
}

// Start marks the hub as accepting events.
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}
	h.running = true
	log.Debug().Msg("event hub started")
	return nil
}

// Stop stops the hub and closes all subscribers.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return nil
	}
	h.running = false

	for _, sub := range h.subscribers {
		_ = sub.Close()
	}
	h.subscribers = make(map[string]ports.Subscriber)

	log.Debug().Msg("event hub stopped")
	return nil
}

// Publish delivers an event to all subscribers before returning. Subscribers
// whose Send fails are dropped.
func (h *Hub) Publish(event events.Event) {
	h.mu.RLock()
	if !h.running {
		h.mu.RUnlock()
		log.Warn().
			Str("event_type", string(event.Type())).
			Msg("event dropped: hub not running")
		return
	}

	// Snapshot so a handler may subscribe/unsubscribe while we dispatch.
	subs := make([]ports.Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	var failed []string
	for _, sub := range subs {
		if err := sub.Send(event); err != nil {
			log.Warn().
				Str("subscriber_id", sub.ID()).
				Err(err).
				Msg("failed to send event to subscriber")
			failed = append(failed, sub.ID())
		}
	}

	for _, id := range failed {
		h.Unsubscribe(id)
	}

	log.Trace().
		Str("event_type", string(event.Type())).
		Msg("event published")
}

// Subscribe adds a new subscriber.
func (h *Hub) Subscribe(sub ports.Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[sub.ID()] = sub
	log.Debug().Str("subscriber_id", sub.ID()).Msg("subscriber registered")
}

// Unsubscribe removes a subscriber by ID and closes it.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subscribers[id]; ok {
		_ = sub.Close()
		delete(h.subscribers, id)
		log.Debug().Str("subscriber_id", id).Msg("subscriber unregistered")
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// IsRunning returns true if the hub is running.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}
