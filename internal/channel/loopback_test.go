package channel

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mdview/mdview/internal/domain"
	"github.com/mdview/mdview/internal/domain/events"
)

func TestLoopback_FailNextOpen(t *testing.T) {
	ch := NewLoopback()
	ch.FailNextOpen(errors.New("refused"))

	if err := ch.Open(context.Background()); err == nil {
		t.Fatal("Open() should fail once")
	}
	if err := ch.Open(context.Background()); err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
}

func TestLoopback_EmitAndSent(t *testing.T) {
	ch := NewLoopback()
	_ = ch.Open(context.Background())

	if err := ch.Emit("fileUpdate", map[string]string{"type": "change"}); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	msg := <-ch.Receive()
	if msg.Event != "fileUpdate" {
		t.Errorf("received event = %q, want fileUpdate", msg.Event)
	}

	if err := ch.Send("hello", nil); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	sent := ch.Sent()
	if len(sent) != 1 || sent[0].Event != "hello" {
		t.Errorf("Sent() = %+v", sent)
	}
}

func TestLoopback_RequestWithHandler(t *testing.T) {
	ch := NewLoopback()
	_ = ch.Open(context.Background())
	ch.HandleRequest(func(event string, payload json.RawMessage) (interface{}, error) {
		return map[string]int{"n": 42}, nil
	})

	raw, err := ch.Request(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	var out map[string]int
	_ = json.Unmarshal(raw, &out)
	if out["n"] != 42 {
		t.Errorf("reply n = %d, want 42", out["n"])
	}
}

func TestLoopback_RequestWithoutHandlerTimesOut(t *testing.T) {
	ch := NewLoopback()
	_ = ch.Open(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	if _, err := ch.Request(ctx, "q", nil); !errors.Is(err, domain.ErrRequestTimeout) {
		t.Errorf("Request() error = %v, want ErrRequestTimeout", err)
	}
}

func TestLoopback_CloseReasons(t *testing.T) {
	tests := []struct {
		name   string
		finish func(ch *Loopback)
		want   events.DisconnectReason
	}{
		{"client close", func(ch *Loopback) { _ = ch.Close() }, events.DisconnectReasonClient},
		{"server close", func(ch *Loopback) { ch.ServerClose() }, events.DisconnectReasonServer},
		{"transport drop", func(ch *Loopback) { ch.DropTransport(errors.New("reset")) }, events.DisconnectReasonTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := NewLoopback()
			_ = ch.Open(context.Background())
			tt.finish(ch)

			info := <-ch.Closed()
			if info.Reason != tt.want {
				t.Errorf("close reason = %v, want %v", info.Reason, tt.want)
			}

			if err := ch.Send("late", nil); !errors.Is(err, domain.ErrChannelClosed) {
				t.Errorf("Send() after close error = %v, want ErrChannelClosed", err)
			}
		})
	}
}
