package ports

import (
	"context"
	"encoding/json"

	"github.com/mdview/mdview/internal/domain/events"
)

// Message is a named event received over the notification channel.
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CloseInfo describes why a channel stopped delivering messages.
type CloseInfo struct {
	Reason events.DisconnectReason
	Err    error
}

// Channel is the duplex transport to the backend watcher service. It emits
// named events and accepts outbound requests with an optional reply.
type Channel interface {
	// Open establishes the connection. It blocks until the transport is
	// up or the context is cancelled.
	Open(ctx context.Context) error

	// Send emits a named event without expecting a reply.
	Send(event string, payload interface{}) error

	// Request emits a named event and waits for the single reply
	// correlated to it, honoring the context deadline.
	Request(ctx context.Context, event string, payload interface{}) (json.RawMessage, error)

	// Receive returns the stream of inbound messages. The channel is
	// closed when the connection ends.
	Receive() <-chan Message

	// Closed returns a channel that delivers exactly one CloseInfo when
	// the connection ends, distinguishing server-initiated closure from
	// transport loss.
	Closed() <-chan CloseInfo

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Dialer opens a fresh Channel for each connection attempt.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Channel, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context) (Channel, error) {
	return f(ctx)
}
