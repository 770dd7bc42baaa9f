// Package testutil provides shared test utilities and mocks for mdview tests.
package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/mdview/mdview/internal/domain/events"
	"github.com/mdview/mdview/internal/domain/ports"
)

// MockSubscriber implements ports.Subscriber for testing.
type MockSubscriber struct {
	id      string
	events  []events.Event
	mu      sync.Mutex
	closed  bool
	sendErr error
	done    chan struct{}
}

// NewMockSubscriber creates a new mock subscriber.
func NewMockSubscriber(id string) *MockSubscriber {
	return &MockSubscriber{
		id:   id,
		done: make(chan struct{}),
	}
}

// ID returns the subscriber ID.
func (m *MockSubscriber) ID() string {
	return m.id
}

// Send records the event and returns any configured error.
func (m *MockSubscriber) Send(e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}

	m.events = append(m.events, e)
	return nil
}

// FailSends makes every subsequent Send return err.
func (m *MockSubscriber) FailSends(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Close marks the subscriber as closed.
func (m *MockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Closed reports whether Close was called.
func (m *MockSubscriber) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Done returns a channel that's closed when the subscriber is done.
func (m *MockSubscriber) Done() <-chan struct{} {
	return m.done
}

// Events returns all received events.
func (m *MockSubscriber) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

// EventCount returns the number of received events.
func (m *MockSubscriber) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// EventTypes returns the types of all received events, in order.
func (m *MockSubscriber) EventTypes() []events.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]events.EventType, len(m.events))
	for i, e := range m.events {
		types[i] = e.Type()
	}
	return types
}

// RecordingHub implements ports.EventHub by recording published events.
type RecordingHub struct {
	mu     sync.Mutex
	events []events.Event
}

// Start implements ports.EventHub.
func (h *RecordingHub) Start() error { return nil }

// Stop implements ports.EventHub.
func (h *RecordingHub) Stop() error { return nil }

// Publish records the event.
func (h *RecordingHub) Publish(event events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

// Subscribe implements ports.EventHub.
func (h *RecordingHub) Subscribe(sub ports.Subscriber) {}

// Unsubscribe implements ports.EventHub.
func (h *RecordingHub) Unsubscribe(id string) {}

// SubscriberCount implements ports.EventHub.
func (h *RecordingHub) SubscriberCount() int { return 0 }

// Events returns all recorded events.
func (h *RecordingHub) Events() []events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := make([]events.Event, len(h.events))
	copy(result, h.events)
	return result
}

// EventTypes returns the types of all recorded events, in order.
func (h *RecordingHub) EventTypes() []events.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	types := make([]events.EventType, len(h.events))
	for i, e := range h.events {
		types[i] = e.Type()
	}
	return types
}

// LastOfType returns the most recent recorded event of the given type.
func (h *RecordingHub) LastOfType(t events.EventType) events.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.events) - 1; i >= 0; i-- {
		if h.events[i].Type() == t {
			return h.events[i]
		}
	}
	return nil
}

// CountOfType returns how many recorded events have the given type.
func (h *RecordingHub) CountOfType(t events.EventType) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e.Type() == t {
			n++
		}
	}
	return n
}

// ManualScheduler implements ports.Scheduler with a manually advanced clock,
// so tests never sleep.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Time
	tasks []*manualTask
}

type manualTask struct {
	s       *ManualScheduler
	at      time.Time
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

// Stop cancels the task.
func (t *manualTask) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// NewManualScheduler creates a scheduler starting at an arbitrary fixed time.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// AfterFunc schedules fn to run when the clock advances past d.
func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) ports.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{s: s, at: s.now.Add(d), delay: d, fn: fn}
	s.tasks = append(s.tasks, t)
	return t
}

// Now returns the manual clock's current time.
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves the clock forward and fires every due task in schedule
// order. Callbacks run on the calling goroutine and may schedule new tasks.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.mu.Unlock()

	for {
		t := s.nextDue()
		if t == nil {
			return
		}
		t.fn()
	}
}

// nextDue pops the earliest unfired, unstopped task that is due.
func (s *ManualScheduler) nextDue() *manualTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	sort.SliceStable(s.tasks, func(i, j int) bool {
		return s.tasks[i].at.Before(s.tasks[j].at)
	})
	for _, t := range s.tasks {
		if !t.fired && !t.stopped && !t.at.After(s.now) {
			t.fired = true
			return t
		}
	}
	return nil
}

// PendingDelays returns the delays of tasks that have neither fired nor been
// stopped, in scheduling order.
func (s *ManualScheduler) PendingDelays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var delays []time.Duration
	for _, t := range s.tasks {
		if !t.fired && !t.stopped {
			delays = append(delays, t.delay)
		}
	}
	return delays
}

// ScheduledDelays returns the delays of every task ever scheduled, fired or
// not, in scheduling order.
func (s *ManualScheduler) ScheduledDelays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	delays := make([]time.Duration, len(s.tasks))
	for i, t := range s.tasks {
		delays[i] = t.delay
	}
	return delays
}

// RecordingTabStrip implements ports.TabStrip by recording calls.
type RecordingTabStrip struct {
	mu      sync.Mutex
	Tabs    map[int64]events.TabInfo
	Active  int64
	Visible bool
	Flags   map[int64]bool
}

// NewRecordingTabStrip creates an empty recording tab strip.
func NewRecordingTabStrip() *RecordingTabStrip {
	return &RecordingTabStrip{
		Tabs:  make(map[int64]events.TabInfo),
		Flags: make(map[int64]bool),
	}
}

// AddTab records the tab visual.
func (r *RecordingTabStrip) AddTab(tab events.TabInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tabs[tab.ID] = tab
}

// RemoveTab removes the tab visual.
func (r *RecordingTabStrip) RemoveTab(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Tabs, id)
	delete(r.Flags, id)
}

// SetActive records the active tab.
func (r *RecordingTabStrip) SetActive(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Active = id
}

// SetModified records the modified flag.
func (r *RecordingTabStrip) SetModified(id int64, modified bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Flags[id] = modified
}

// SetVisible records the bar visibility.
func (r *RecordingTabStrip) SetVisible(visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Visible = visible
}

// TabCount returns the number of tab visuals present.
func (r *RecordingTabStrip) TabCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Tabs)
}

// ActiveID returns the recorded active tab id.
func (r *RecordingTabStrip) ActiveID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Active
}

// IsVisible returns the recorded visibility.
func (r *RecordingTabStrip) IsVisible() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Visible
}

// RecordingNotifier implements ports.Notifier by recording messages.
type RecordingNotifier struct {
	mu       sync.Mutex
	Infos    []string
	Warnings []string
}

// Info records an info message.
func (n *RecordingNotifier) Info(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Infos = append(n.Infos, message)
}

// Warn records a warning message.
func (n *RecordingNotifier) Warn(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Warnings = append(n.Warnings, message)
}

// WarningCount returns the number of recorded warnings.
func (n *RecordingNotifier) WarningCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Warnings)
}
