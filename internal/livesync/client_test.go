package livesync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mdview/mdview/internal/channel"
	"github.com/mdview/mdview/internal/domain"
	"github.com/mdview/mdview/internal/domain/events"
	"github.com/mdview/mdview/internal/domain/ports"
	"github.com/mdview/mdview/internal/testutil"
)

// scriptedDialer serves a scripted sequence of dial outcomes, then keeps
// returning fresh loopback channels.
type scriptedDialer struct {
	mu      sync.Mutex
	outcome []error // nil entry = successful dial
	dials   int
	last    *channel.Loopback
}

func (d *scriptedDialer) Dial(ctx context.Context) (ports.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.outcome) > 0 {
		err := d.outcome[0]
		d.outcome = d.outcome[1:]
		if err != nil {
			return nil, err
		}
	}
	d.last = channel.NewLoopback()
	return d.last, nil
}

func (d *scriptedDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *scriptedDialer) lastChannel() *channel.Loopback {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

func failures(n int) []error {
	out := make([]error, n)
	for i := range out {
		out[i] = errors.New("connection refused")
	}
	return out
}

type clientFixture struct {
	client *Client
	dialer *scriptedDialer
	hub    *testutil.RecordingHub
	sched  *testutil.ManualScheduler
}

func newClientFixture(t *testing.T, outcome []error) *clientFixture {
	t.Helper()
	f := &clientFixture{
		dialer: &scriptedDialer{outcome: outcome},
		hub:    &testutil.RecordingHub{},
		sched:  testutil.NewManualScheduler(),
	}
	f.client = New(f.dialer, f.hub, "ws://test/ws", Options{Scheduler: f.sched})
	return f
}

// eventually polls cond until it holds or the deadline passes. Needed where
// the read loop goroutine is involved; timer-driven paths use the manual
// scheduler instead.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestBackoff(t *testing.T) {
	base := 1 * time.Second
	max := 30 * time.Second

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second}, // capped
		{10, 30 * time.Second},
		{0, 1 * time.Second}, // clamped to first attempt
	}

	for _, tt := range tests {
		if got := Backoff(base, max, tt.attempt); got != tt.want {
			t.Errorf("Backoff(attempt=%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestClient_Connect(t *testing.T) {
	f := newClientFixture(t, nil)

	f.client.Connect(context.Background())

	if got := f.client.State(); got != StateConnected {
		t.Fatalf("State() = %v, want %v", got, StateConnected)
	}
	if got := f.hub.CountOfType(events.EventTypeConnected); got != 1 {
		t.Errorf("connected count = %d, want 1", got)
	}
	// First connect is not a reconnect
	if got := f.hub.CountOfType(events.EventTypeReconnected); got != 0 {
		t.Errorf("reconnected count = %d, want 0", got)
	}

	// State transitions: disconnected -> connecting -> connected
	var changes []string
	for _, e := range f.hub.Events() {
		if e.Type() == events.EventTypeStateChanged {
			p := e.(*events.BaseEvent).Payload.(events.StateChangedPayload)
			changes = append(changes, p.From+">"+p.To)
		}
	}
	want := []string{"disconnected>connecting", "connecting>connected"}
	if len(changes) != len(want) {
		t.Fatalf("state changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("state change[%d] = %q, want %q", i, changes[i], want[i])
		}
	}
}

func TestClient_ConnectWhileConnectedIsNoOp(t *testing.T) {
	f := newClientFixture(t, nil)

	f.client.Connect(context.Background())
	f.client.Connect(context.Background())

	if got := f.dialer.dialCount(); got != 1 {
		t.Errorf("dial count = %d, want 1", got)
	}
}

func TestClient_DialFailureSchedulesRetry(t *testing.T) {
	f := newClientFixture(t, failures(1))

	f.client.Connect(context.Background())

	if got := f.client.State(); got != StateReconnecting {
		t.Fatalf("State() = %v, want %v", got, StateReconnecting)
	}
	if got := f.client.ReconnectAttempts(); got != 1 {
		t.Errorf("ReconnectAttempts() = %d, want 1", got)
	}
	if got := f.client.CurrentBackoff(); got != 1*time.Second {
		t.Errorf("CurrentBackoff() = %v, want 1s", got)
	}

	f.sched.Advance(1 * time.Second)

	if got := f.client.State(); got != StateConnected {
		t.Fatalf("State() after retry = %v, want %v", got, StateConnected)
	}
	p := f.hub.LastOfType(events.EventTypeReconnected).(*events.BaseEvent).Payload.(events.ReconnectedPayload)
	if p.Attempts != 1 {
		t.Errorf("reconnected attempts = %d, want 1", p.Attempts)
	}
}

func TestClient_TransportLossTriggersReconnect(t *testing.T) {
	f := newClientFixture(t, nil)

	f.client.Connect(context.Background())
	f.dialer.lastChannel().DropTransport(errors.New("broken pipe"))

	eventually(t, func() bool { return f.client.State() == StateReconnecting },
		"client never entered reconnecting after transport loss")

	p := f.hub.LastOfType(events.EventTypeDisconnected).(*events.BaseEvent).Payload.(events.DisconnectedPayload)
	if p.Reason != events.DisconnectReasonTransport {
		t.Errorf("disconnect reason = %v, want %v", p.Reason, events.DisconnectReasonTransport)
	}

	f.sched.Advance(1 * time.Second)

	eventually(t, func() bool { return f.client.State() == StateConnected },
		"client never reconnected")
	if got := f.dialer.dialCount(); got != 2 {
		t.Errorf("dial count = %d, want 2", got)
	}
}

func TestClient_ServerCloseDoesNotReconnect(t *testing.T) {
	f := newClientFixture(t, nil)

	f.client.Connect(context.Background())
	f.dialer.lastChannel().ServerClose()

	eventually(t, func() bool { return f.client.State() == StateDisconnected },
		"client never returned to disconnected after server close")

	p := f.hub.LastOfType(events.EventTypeDisconnected).(*events.BaseEvent).Payload.(events.DisconnectedPayload)
	if p.Reason != events.DisconnectReasonServer {
		t.Errorf("disconnect reason = %v, want %v", p.Reason, events.DisconnectReasonServer)
	}
	if got := len(f.sched.PendingDelays()); got != 0 {
		t.Errorf("pending retries = %d, want 0", got)
	}
}

func TestClient_FailsAfterMaxAttempts(t *testing.T) {
	f := newClientFixture(t, failures(6))

	f.client.Connect(context.Background())

	// Walk through every scheduled retry; each dial fails
	for _, d := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second} {
		if got := f.client.CurrentBackoff(); got != d {
			t.Errorf("CurrentBackoff() = %v, want %v", got, d)
		}
		f.sched.Advance(d)
	}

	if got := f.client.State(); got != StateFailed {
		t.Fatalf("State() = %v, want %v", got, StateFailed)
	}
	p := f.hub.LastOfType(events.EventTypeReconnectFailed).(*events.BaseEvent).Payload.(events.ReconnectFailedPayload)
	if p.Attempts != 5 {
		t.Errorf("reconnect_failed attempts = %d, want 5", p.Attempts)
	}

	// Delay ladder is the doubling sequence from base
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	got := f.sched.ScheduledDelays()
	if len(got) != len(want) {
		t.Fatalf("scheduled delays = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	// Explicit Connect is the only way out of Failed
	f.client.Connect(context.Background())
	if got := f.client.State(); got != StateConnected {
		t.Errorf("State() after manual reconnect = %v, want %v", got, StateConnected)
	}
}

func TestClient_DisconnectCancelsPendingRetry(t *testing.T) {
	f := newClientFixture(t, failures(1))

	f.client.Connect(context.Background())
	if got := f.client.State(); got != StateReconnecting {
		t.Fatalf("State() = %v, want %v", got, StateReconnecting)
	}

	f.client.Disconnect()

	if got := f.client.State(); got != StateDisconnected {
		t.Errorf("State() = %v, want %v", got, StateDisconnected)
	}
	if got := len(f.sched.PendingDelays()); got != 0 {
		t.Errorf("pending retries = %d, want 0", got)
	}

	// A stale timer firing later must not resurrect the connection
	f.sched.Advance(time.Minute)
	if got := f.client.State(); got != StateDisconnected {
		t.Errorf("State() after stale timer = %v, want %v", got, StateDisconnected)
	}
	if got := f.dialer.dialCount(); got != 1 {
		t.Errorf("dial count = %d, want 1", got)
	}
}

func TestClient_DisconnectPublishesClientReason(t *testing.T) {
	f := newClientFixture(t, nil)

	f.client.Connect(context.Background())
	f.client.Disconnect()

	if got := f.client.State(); got != StateDisconnected {
		t.Fatalf("State() = %v, want %v", got, StateDisconnected)
	}
	p := f.hub.LastOfType(events.EventTypeDisconnected).(*events.BaseEvent).Payload.(events.DisconnectedPayload)
	if p.Reason != events.DisconnectReasonClient {
		t.Errorf("disconnect reason = %v, want %v", p.Reason, events.DisconnectReasonClient)
	}
}

func TestClient_FileUpdateDispatch(t *testing.T) {
	tests := []struct {
		wireType string
		want     events.EventType
	}{
		{"change", events.EventTypeFileChanged},
		{"add", events.EventTypeFileAdded},
		{"unlink", events.EventTypeFileRemoved},
		{"addDir", events.EventTypeDirAdded},
		{"unlinkDir", events.EventTypeDirRemoved},
		{"error", events.EventTypeFileError},
		{"ready", events.EventTypeWatcherReady},
		{"stop", events.EventTypeWatcherStopped},
		{"watcherError", events.EventTypeWatcherError},
	}

	f := newClientFixture(t, nil)
	f.client.Connect(context.Background())
	ch := f.dialer.lastChannel()

	for _, tt := range tests {
		payload := events.FileUpdatePayload{Type: events.FileUpdateType(tt.wireType), File: "doc.md"}
		if err := ch.Emit("fileUpdate", payload); err != nil {
			t.Fatalf("Emit(%q) error = %v", tt.wireType, err)
		}
		tt := tt
		eventually(t, func() bool { return f.hub.CountOfType(tt.want) == 1 },
			"no "+string(tt.want)+" event for wire type "+tt.wireType)
	}
}

func TestClient_UnknownUpdateTypeDropped(t *testing.T) {
	f := newClientFixture(t, nil)
	f.client.Connect(context.Background())
	ch := f.dialer.lastChannel()

	_ = ch.Emit("fileUpdate", map[string]string{"type": "mystery", "file": "doc.md"})
	_ = ch.Emit("somethingElse", nil)
	// A recognized event after the junk proves the loop survived it
	_ = ch.Emit("fileUpdate", events.FileUpdatePayload{Type: events.FileUpdateChange, File: "doc.md"})

	eventually(t, func() bool { return f.hub.CountOfType(events.EventTypeFileChanged) == 1 },
		"client stopped dispatching after unknown events")

	for _, e := range f.hub.Events() {
		switch e.Type() {
		case events.EventTypeFileAdded, events.EventTypeFileError, events.EventTypeWatcherError:
			t.Errorf("unknown wire event leaked as %v", e.Type())
		}
	}
}

func TestClient_Stats(t *testing.T) {
	f := newClientFixture(t, nil)

	// Not connected yet
	if _, err := f.client.Stats(context.Background()); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("Stats() error = %v, want ErrNotConnected", err)
	}

	f.client.Connect(context.Background())
	f.dialer.lastChannel().HandleRequest(func(event string, payload json.RawMessage) (interface{}, error) {
		if event != "getWatcherStats" {
			t.Errorf("request event = %q, want getWatcherStats", event)
		}
		return Stats{WatchedDirs: 4, EventsEmitted: 99, Clients: 2, UptimeSeconds: 60}, nil
	})

	stats, err := f.client.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.WatchedDirs != 4 || stats.EventsEmitted != 99 || stats.Clients != 2 || stats.UptimeSeconds != 60 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestClient_StatsTimeout(t *testing.T) {
	f := newClientFixture(t, nil)
	f.client.Connect(context.Background())
	// No request handler installed: the backend stays silent

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	if _, err := f.client.Stats(ctx); !errors.Is(err, domain.ErrRequestTimeout) {
		t.Errorf("Stats() error = %v, want ErrRequestTimeout", err)
	}
}
