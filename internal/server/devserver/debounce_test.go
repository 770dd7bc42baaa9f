package devserver

import (
	"sync"
	"testing"
	"time"

	"github.com/mdview/mdview/internal/domain/events"
)

type debounceRecorder struct {
	mu    sync.Mutex
	fired []events.FileUpdatePayload
}

func (r *debounceRecorder) callback(path string, kind events.FileUpdateType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, events.FileUpdatePayload{Type: kind, File: path})
}

func (r *debounceRecorder) snapshot() []events.FileUpdatePayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.FileUpdatePayload, len(r.fired))
	copy(out, r.fired)
	return out
}

func waitForCount(t *testing.T, r *debounceRecorder, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(r.snapshot()) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("debouncer fired %d times, want %d", len(r.snapshot()), n)
}

func TestDebouncer_CoalescesPerPath(t *testing.T) {
	rec := &debounceRecorder{}
	d := NewDebouncer(20*time.Millisecond, rec.callback)
	defer d.Stop()

	d.Add("a.md", events.FileUpdateChange)
	d.Add("a.md", events.FileUpdateChange)
	d.Add("a.md", events.FileUpdateChange)

	waitForCount(t, rec, 1)
	time.Sleep(30 * time.Millisecond)

	fired := rec.snapshot()
	if len(fired) != 1 {
		t.Fatalf("fired %d times, want 1", len(fired))
	}
	if fired[0].File != "a.md" || fired[0].Type != events.FileUpdateChange {
		t.Errorf("fired = %+v", fired[0])
	}
}

func TestDebouncer_IndependentPaths(t *testing.T) {
	rec := &debounceRecorder{}
	d := NewDebouncer(10*time.Millisecond, rec.callback)
	defer d.Stop()

	d.Add("a.md", events.FileUpdateChange)
	d.Add("b.md", events.FileUpdateChange)

	waitForCount(t, rec, 2)
}

func TestDebouncer_StopDropsPending(t *testing.T) {
	rec := &debounceRecorder{}
	d := NewDebouncer(10*time.Millisecond, rec.callback)

	d.Add("a.md", events.FileUpdateChange)
	d.Stop()

	time.Sleep(30 * time.Millisecond)
	if got := len(rec.snapshot()); got != 0 {
		t.Errorf("fired %d times after Stop, want 0", got)
	}

	// Adds after Stop are ignored
	d.Add("b.md", events.FileUpdateChange)
	time.Sleep(30 * time.Millisecond)
	if got := len(rec.snapshot()); got != 0 {
		t.Errorf("fired %d times after Stop, want 0", got)
	}
}

func TestMergeUpdateKinds(t *testing.T) {
	tests := []struct {
		existing, next, want events.FileUpdateType
	}{
		{events.FileUpdateAdd, events.FileUpdateChange, events.FileUpdateAdd},
		{events.FileUpdateChange, events.FileUpdateUnlink, events.FileUpdateUnlink},
		{events.FileUpdateAdd, events.FileUpdateUnlink, events.FileUpdateUnlink},
		{events.FileUpdateChange, events.FileUpdateChange, events.FileUpdateChange},
		{events.FileUpdateAddDir, events.FileUpdateChange, events.FileUpdateAddDir},
		{events.FileUpdateChange, events.FileUpdateUnlinkDir, events.FileUpdateUnlinkDir},
	}

	for _, tt := range tests {
		if got := mergeUpdateKinds(tt.existing, tt.next); got != tt.want {
			t.Errorf("mergeUpdateKinds(%s, %s) = %s, want %s", tt.existing, tt.next, got, tt.want)
		}
	}
}
