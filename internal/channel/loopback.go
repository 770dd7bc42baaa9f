package channel

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mdview/mdview/internal/domain"
	"github.com/mdview/mdview/internal/domain/events"
	"github.com/mdview/mdview/internal/domain/ports"
)

// Loopback is an in-process ports.Channel whose far end is driven
// programmatically. It backs deterministic tests and headless wiring where
// no real backend exists.
type Loopback struct {
	mu       sync.Mutex
	handler  func(event string, payload json.RawMessage) (interface{}, error)
	sent     []ports.Message
	opened   bool
	failOpen error

	recv      chan ports.Message
	closed    chan ports.CloseInfo
	done      chan struct{}
	closeOnce sync.Once
}

// NewLoopback creates an unopened loopback channel.
func NewLoopback() *Loopback {
	return &Loopback{
		recv:   make(chan ports.Message, 64),
		closed: make(chan ports.CloseInfo, 1),
		done:   make(chan struct{}),
	}
}

// FailNextOpen makes the next Open return err.
func (c *Loopback) FailNextOpen(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failOpen = err
}

// HandleRequest installs the far end's request handler.
func (c *Loopback) HandleRequest(fn func(event string, payload json.RawMessage) (interface{}, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = fn
}

// Open implements ports.Channel.
func (c *Loopback) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failOpen != nil {
		err := c.failOpen
		c.failOpen = nil
		return domain.NewChannelError("dial", err)
	}
	c.opened = true
	return nil
}

// Send implements ports.Channel, recording the outbound message.
func (c *Loopback) Send(event string, payload interface{}) error {
	select {
	case <-c.done:
		return domain.ErrChannelClosed
	default:
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return domain.NewChannelError("send", err)
	}
	c.mu.Lock()
	c.sent = append(c.sent, ports.Message{Event: event, Payload: data})
	c.mu.Unlock()
	return nil
}

// Request implements ports.Channel, answering through the installed handler.
// With no handler the request blocks until the deadline, mimicking a silent
// backend.
func (c *Loopback) Request(ctx context.Context, event string, payload interface{}) (json.RawMessage, error) {
	select {
	case <-c.done:
		return nil, domain.ErrChannelClosed
	default:
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.NewChannelError("request", err)
	}

	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()

	if handler == nil {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, domain.ErrRequestTimeout
			}
			return nil, ctx.Err()
		case <-c.done:
			return nil, domain.ErrChannelClosed
		}
	}

	reply, err := handler(event, data)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(reply)
	if err != nil {
		return nil, domain.NewChannelError("request", err)
	}
	return raw, nil
}

// Receive implements ports.Channel.
func (c *Loopback) Receive() <-chan ports.Message {
	return c.recv
}

// Closed implements ports.Channel.
func (c *Loopback) Closed() <-chan ports.CloseInfo {
	return c.closed
}

// Close implements ports.Channel.
func (c *Loopback) Close() error {
	c.finish(ports.CloseInfo{Reason: events.DisconnectReasonClient})
	return nil
}

// Emit injects an inbound named event, as if the backend sent it.
func (c *Loopback) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	select {
	case c.recv <- ports.Message{Event: event, Payload: data}:
		return nil
	case <-c.done:
		return domain.ErrChannelClosed
	}
}

// ServerClose simulates the backend closing the channel on purpose.
func (c *Loopback) ServerClose() {
	c.finish(ports.CloseInfo{Reason: events.DisconnectReasonServer})
}

// DropTransport simulates a transport-level connection loss.
func (c *Loopback) DropTransport(err error) {
	c.finish(ports.CloseInfo{Reason: events.DisconnectReasonTransport, Err: err})
}

// Sent returns every outbound message recorded so far.
func (c *Loopback) Sent() []ports.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ports.Message, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *Loopback) finish(info ports.CloseInfo) {
	// recv is left open so a concurrent Emit can never send on a closed
	// channel; consumers exit through the Closed signal.
	c.closeOnce.Do(func() {
		close(c.done)
		c.closed <- info
	})
}
