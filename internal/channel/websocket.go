package channel

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mdview/mdview/internal/domain"
	"github.com/mdview/mdview/internal/domain/events"
	"github.com/mdview/mdview/internal/domain/ports"
)

const handshakeTimeout = 10 * time.Second

// WebSocket is the gorilla/websocket implementation of ports.Channel.
// A WebSocket is single-use: after it closes, dial a new one.
type WebSocket struct {
	url string

	conn    *websocket.Conn
	writeMu sync.Mutex // serialises all conn writes

	mu     sync.Mutex
	nextID int64

	pending   map[int64]chan json.RawMessage
	pendingMu sync.Mutex

	recv      chan ports.Message
	closed    chan ports.CloseInfo
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocket creates an unopened channel for the given ws:// URL.
func NewWebSocket(url string) *WebSocket {
	return &WebSocket{
		url:     url,
		nextID:  1,
		pending: make(map[int64]chan json.RawMessage),
		recv:    make(chan ports.Message, 64),
		closed:  make(chan ports.CloseInfo, 1),
		done:    make(chan struct{}),
	}
}

// Dialer returns a ports.Dialer producing fresh WebSocket channels for url.
func Dialer(url string) ports.Dialer {
	return ports.DialerFunc(func(ctx context.Context) (ports.Channel, error) {
		ch := NewWebSocket(url)
		if err := ch.Open(ctx); err != nil {
			return nil, err
		}
		return ch, nil
	})
}

// Open dials the backend and starts the read loop.
func (c *WebSocket) Open(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return domain.NewChannelError("dial", err)
	}
	c.conn = conn

	go c.readLoop()

	log.Debug().Str("url", c.url).Msg("channel opened")
	return nil
}

// Send emits a named event without expecting a reply.
func (c *WebSocket) Send(event string, payload interface{}) error {
	select {
	case <-c.done:
		return domain.ErrChannelClosed
	default:
	}

	env, err := NewEnvelope(event, 0, payload)
	if err != nil {
		return domain.NewChannelError("send", err)
	}

	c.writeMu.Lock()
	err = c.conn.WriteJSON(env)
	c.writeMu.Unlock()
	if err != nil {
		return domain.NewChannelError("send", err)
	}
	return nil
}

// Request emits a named event and waits for the correlated reply.
func (c *WebSocket) Request(ctx context.Context, event string, payload interface{}) (json.RawMessage, error) {
	select {
	case <-c.done:
		return nil, domain.ErrChannelClosed
	default:
	}

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.mu.Unlock()

	env, err := NewEnvelope(event, id, payload)
	if err != nil {
		return nil, domain.NewChannelError("request", err)
	}

	respCh := make(chan json.RawMessage, 1)
	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	c.writeMu.Lock()
	err = c.conn.WriteJSON(env)
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, domain.NewChannelError("request", err)
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			return nil, domain.ErrChannelClosed
		}
		return resp, nil
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, domain.ErrRequestTimeout
		}
		return nil, ctx.Err()
	case <-c.done:
		return nil, domain.ErrChannelClosed
	}
}

// Receive returns the stream of inbound messages.
func (c *WebSocket) Receive() <-chan ports.Message {
	return c.recv
}

// Closed returns the channel delivering the close reason.
func (c *WebSocket) Closed() <-chan ports.CloseInfo {
	return c.closed
}

// Close tears the connection down from the client side.
func (c *WebSocket) Close() error {
	c.finish(ports.CloseInfo{Reason: events.DisconnectReasonClient})
	return nil
}

// readLoop pumps inbound envelopes, routing replies to waiting requests and
// everything else onto the receive stream. The receive stream is closed when
// the loop exits, so only this goroutine ever closes it.
func (c *WebSocket) readLoop() {
	defer close(c.recv)

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			reason := events.DisconnectReasonTransport
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = events.DisconnectReasonServer
			}
			c.finish(ports.CloseInfo{Reason: reason, Err: err})
			return
		}

		// Explicit goodbye from the backend.
		if env.Event == EventDisconnect {
			c.finish(ports.CloseInfo{Reason: events.DisconnectReasonServer})
			return
		}

		// Reply to a pending request.
		if env.ID != 0 {
			c.pendingMu.Lock()
			respCh, ok := c.pending[env.ID]
			if ok {
				delete(c.pending, env.ID)
			}
			c.pendingMu.Unlock()
			if ok {
				respCh <- env.Payload
			} else {
				log.Debug().Int64("id", env.ID).Msg("reply with no pending request dropped")
			}
			continue
		}

		select {
		case c.recv <- ports.Message{Event: env.Event, Payload: env.Payload}:
		case <-c.done:
			return
		}
	}
}

// finish closes the connection exactly once, failing pending requests and
// publishing the close reason.
func (c *WebSocket) finish(info ports.CloseInfo) {
	c.closeOnce.Do(func() {
		close(c.done)

		if c.conn != nil {
			if info.Reason == events.DisconnectReasonClient {
				// Best-effort goodbye so the server logs a clean close.
				c.writeMu.Lock()
				_ = c.conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(time.Second),
				)
				c.writeMu.Unlock()
			}
			_ = c.conn.Close()
		}

		c.pendingMu.Lock()
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()

		c.closed <- info

		log.Debug().
			Str("url", c.url).
			Str("reason", string(info.Reason)).
			Msg("channel closed")
	})
}
