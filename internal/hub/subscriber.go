package hub

import (
	"sync"

	"github.com/google/uuid"

	"github.com/mdview/mdview/internal/domain"
	"github.com/mdview/mdview/internal/domain/events"
)

// FuncSubscriber invokes a callback for each event, optionally filtered to a
// set of event types. Delivery happens on the publisher's goroutine.
type FuncSubscriber struct {
	id     string
	filter map[events.EventType]struct{}
	fn     func(event events.Event)

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

// NewFuncSubscriber creates a callback subscriber. With no types given it
// receives every event.
func NewFuncSubscriber(fn func(event events.Event), types ...events.EventType) *FuncSubscriber {
	var filter map[events.EventType]struct{}
	if len(types) > 0 {
		filter = make(map[events.EventType]struct{}, len(types))
		for _, t := range types {
			filter[t] = struct{}{}
		}
	}
	return &FuncSubscriber{
		id:     uuid.New().String(),
		filter: filter,
		fn:     fn,
		done:   make(chan struct{}),
	}
}

// ID returns the subscriber's unique identifier.
func (s *FuncSubscriber) ID() string {
	return s.id
}

// Send invokes the callback if the event passes the filter.
func (s *FuncSubscriber) Send(event events.Event) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return domain.ErrSubscriberClosed
	}

	if s.filter != nil {
		if _, ok := s.filter[event.Type()]; !ok {
			return nil
		}
	}

	s.fn(event)
	return nil
}

// Close closes the subscriber.
func (s *FuncSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (s *FuncSubscriber) Done() <-chan struct{} {
	return s.done
}

// ChannelSubscriber is a subscriber that sends events to a channel, for
// consumers that want to pull events on their own goroutine.
type ChannelSubscriber struct {
	id   string
	send chan events.Event

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

// NewChannelSubscriber creates a new channel-based subscriber.
func NewChannelSubscriber(id string, bufferSize int) *ChannelSubscriber {
	if id == "" {
		id = uuid.New().String()
	}
	return &ChannelSubscriber{
		id:   id,
		send: make(chan events.Event, bufferSize),
		done: make(chan struct{}),
	}
}

// ID returns the subscriber's unique identifier.
func (s *ChannelSubscriber) ID() string {
	return s.id
}

// Send sends an event to the subscriber.
func (s *ChannelSubscriber) Send(event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSubscriberClosed
	}

	select {
	case s.send <- event:
		return nil
	default:
		// Channel full, subscriber is too slow
		return domain.ErrSubscriberClosed
	}
}

// Close closes the subscriber.
func (s *ChannelSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	close(s.send)
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (s *ChannelSubscriber) Done() <-chan struct{} {
	return s.done
}

// Events returns the channel to receive events from.
func (s *ChannelSubscriber) Events() <-chan events.Event {
	return s.send
}
