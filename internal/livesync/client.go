// Package livesync maintains the connection to the backend watcher service
// and republishes its change notifications as typed local events.
//
// The client owns one notification channel at a time and runs a small state
// machine over it: Disconnected, Connecting, Connected, Reconnecting,
// Failed. Transport-level losses trigger exponential-backoff reconnects;
// server-initiated closes do not.
package livesync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mdview/mdview/internal/domain"
	"github.com/mdview/mdview/internal/domain/events"
	"github.com/mdview/mdview/internal/domain/ports"
)

// State is the connection state of the client.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// Defaults for the reconnect contract.
const (
	DefaultBaseDelay    = 1 * time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultMaxAttempts  = 5
	DefaultStatsTimeout = 5 * time.Second
)

// Options tune the reconnect and request behavior. Zero values fall back to
// the defaults above.
type Options struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	StatsTimeout time.Duration
	Scheduler    ports.Scheduler
}

func (o Options) withDefaults() Options {
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.StatsTimeout <= 0 {
		o.StatsTimeout = DefaultStatsTimeout
	}
	if o.Scheduler == nil {
		o.Scheduler = ports.WallClock()
	}
	return o
}

// Stats is the backend watcher's self-report.
type Stats struct {
	WatchedDirs   int   `json:"watchedDirs"`
	EventsEmitted int64 `json:"eventsEmitted"`
	Clients       int   `json:"clients"`
	UptimeSeconds int64 `json:"uptimeSeconds"`
}

// Client is the live-sync client.
type Client struct {
	dialer ports.Dialer
	hub    ports.EventHub
	opts   Options
	url    string

	mu        sync.Mutex
	state     State
	attempts  int
	backoff   time.Duration
	ch        ports.Channel
	retryTask ports.Task
	gen       int
	ctx       context.Context
}

// New creates a live-sync client that dials through dialer and republishes
// events on hub. url is informational only (carried on connected events).
func New(dialer ports.Dialer, hub ports.EventHub, url string, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		dialer:  dialer,
		hub:     hub,
		opts:    opts,
		url:     url,
		state:   StateDisconnected,
		backoff: opts.BaseDelay,
		ctx:     context.Background(),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ReconnectAttempts returns the consecutive failed attempt count.
func (c *Client) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// CurrentBackoff returns the delay used for the most recent retry.
func (c *Client) CurrentBackoff() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backoff
}

// Connect opens the channel. Calling it while already connected or
// connecting is a no-op. From Failed it restarts the attempt counter; this
// is the only recovery path out of Failed.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	switch c.state {
	case StateConnected, StateConnecting, StateReconnecting:
		c.mu.Unlock()
		return
	}
	if c.retryTask != nil {
		c.retryTask.Stop()
		c.retryTask = nil
	}
	c.attempts = 0
	c.backoff = c.opts.BaseDelay
	c.ctx = ctx
	emit := c.transition(StateConnecting)
	c.mu.Unlock()
	emit()

	c.attempt(ctx)
}

// Disconnect closes the channel explicitly. Safe to call in any state; a
// pending retry timer is cancelled.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.retryTask != nil {
		c.retryTask.Stop()
		c.retryTask = nil
	}
	c.gen++ // invalidate the running read loop
	ch := c.ch
	c.ch = nil
	var emit func()
	if c.state != StateDisconnected {
		emit = c.transition(StateDisconnected)
	}
	c.mu.Unlock()

	if ch != nil {
		_ = ch.Close()
	}
	if emit != nil {
		emit()
		c.hub.Publish(events.NewDisconnectedEvent(events.DisconnectReasonClient, ""))
	}
}

// Stats requests the backend watcher's statistics. It fails immediately when
// not connected and times out after the configured deadline.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	c.mu.Lock()
	ch := c.ch
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || ch == nil {
		return Stats{}, domain.ErrNotConnected
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.StatsTimeout)
		defer cancel()
	}

	raw, err := ch.Request(ctx, "getWatcherStats", nil)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return Stats{}, domain.NewChannelError("request", err)
	}
	return stats, nil
}

// attempt dials once and either installs the connection or schedules the
// next retry.
func (c *Client) attempt(ctx context.Context) {
	ch, err := c.dialer.Dial(ctx)

	c.mu.Lock()
	if c.state != StateConnecting && c.state != StateReconnecting {
		// Superseded by Disconnect while dialing.
		c.mu.Unlock()
		if err == nil {
			_ = ch.Close()
		}
		return
	}

	if err != nil {
		log.Warn().Err(err).Int("attempt", c.attempts).Msg("connection attempt failed")
		c.scheduleRetryLocked()
		return
	}

	c.ch = ch
	c.gen++
	gen := c.gen
	retries := c.attempts
	c.attempts = 0
	c.backoff = c.opts.BaseDelay
	emit := c.transition(StateConnected)
	c.mu.Unlock()

	go c.readLoop(ch, gen)

	emit()
	c.hub.Publish(events.NewConnectedEvent(c.url))
	if retries > 0 {
		c.hub.Publish(events.NewReconnectedEvent(retries))
	}
	log.Info().Str("url", c.url).Int("retries", retries).Msg("live-sync connected")
}

// scheduleRetryLocked books the next reconnect attempt, or gives up after
// the attempt cap. Called with c.mu held; releases it.
func (c *Client) scheduleRetryLocked() {
	if c.attempts >= c.opts.MaxAttempts {
		attempts := c.attempts
		emit := c.transition(StateFailed)
		c.retryTask = nil
		c.mu.Unlock()
		emit()
		c.hub.Publish(events.NewReconnectFailedEvent(attempts))
		log.Error().Int("attempts", attempts).Msg("reconnect failed permanently")
		return
	}

	c.attempts++
	delay := Backoff(c.opts.BaseDelay, c.opts.MaxDelay, c.attempts)
	c.backoff = delay
	ctx := c.ctx
	var emit func()
	if c.state != StateReconnecting {
		emit = c.transition(StateReconnecting)
	}
	c.retryTask = c.opts.Scheduler.AfterFunc(delay, func() {
		c.retry(ctx)
	})
	c.mu.Unlock()

	if emit != nil {
		emit()
	}
	log.Debug().
		Dur("delay", delay).
		Int("attempt", c.attempts).
		Msg("reconnect scheduled")
}

// retry runs when the backoff timer fires.
func (c *Client) retry(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.retryTask = nil
	c.mu.Unlock()

	c.attempt(ctx)
}

// readLoop consumes the channel until it closes.
func (c *Client) readLoop(ch ports.Channel, gen int) {
	recv := ch.Receive()
	for {
		select {
		case msg, ok := <-recv:
			if !ok {
				// Closure itself is reported through Closed.
				recv = nil
				continue
			}
			c.dispatch(msg)

		case info := <-ch.Closed():
			c.handleClose(gen, info)
			return
		}
	}
}

// dispatch classifies one inbound message and republishes it locally.
func (c *Client) dispatch(msg ports.Message) {
	switch msg.Event {
	case "fileUpdate":
		var payload events.FileUpdatePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			log.Warn().Err(err).Msg("malformed fileUpdate payload dropped")
			return
		}
		eventType, ok := events.ClassifyFileUpdate(payload.Type)
		if !ok {
			log.Warn().Str("type", string(payload.Type)).Msg("unrecognized fileUpdate type dropped")
			return
		}
		c.hub.Publish(events.NewFileUpdateEvent(eventType, payload))

	case "connected":
		// Welcome frame; connection state is tracked by transitions.
		log.Debug().Msg("backend welcome received")

	default:
		log.Debug().Str("event", msg.Event).Msg("unhandled channel event dropped")
	}
}

// handleClose reacts to the channel ending.
func (c *Client) handleClose(gen int, info ports.CloseInfo) {
	c.mu.Lock()
	if gen != c.gen {
		// A newer connection (or an explicit Disconnect) superseded this
		// one.
		c.mu.Unlock()
		return
	}
	c.ch = nil

	switch info.Reason {
	case events.DisconnectReasonServer:
		emit := c.transition(StateDisconnected)
		c.mu.Unlock()
		emit()
		c.hub.Publish(events.NewDisconnectedEvent(events.DisconnectReasonServer, errString(info.Err)))
		log.Info().Msg("server closed the connection; not retrying")

	case events.DisconnectReasonClient:
		emit := c.transition(StateDisconnected)
		c.mu.Unlock()
		emit()
		c.hub.Publish(events.NewDisconnectedEvent(events.DisconnectReasonClient, ""))

	default: // transport loss
		c.scheduleRetryLocked()
		c.hub.Publish(events.NewDisconnectedEvent(events.DisconnectReasonTransport, errString(info.Err)))
		log.Warn().Err(info.Err).Msg("transport lost; reconnecting")
	}
}

// transition changes state and returns a closure that emits the
// state-change event; the caller invokes it after releasing c.mu.
func (c *Client) transition(to State) func() {
	from := c.state
	c.state = to
	return func() {
		if from != to {
			c.hub.Publish(events.NewStateChangedEvent(string(from), string(to)))
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
