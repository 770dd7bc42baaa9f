package devserver

import (
	"sync"
	"time"

	"github.com/mdview/mdview/internal/domain/events"
)

// pendingUpdate is a debounced watcher notification.
type pendingUpdate struct {
	path  string
	kind  events.FileUpdateType
	timer *time.Timer
}

// Debouncer coalesces rapid file system events per path.
type Debouncer struct {
	window   time.Duration
	callback func(path string, kind events.FileUpdateType)

	mu      sync.Mutex
	pending map[string]*pendingUpdate
	stopped bool
}

// NewDebouncer creates a new debouncer with the given window and callback.
func NewDebouncer(window time.Duration, callback func(path string, kind events.FileUpdateType)) *Debouncer {
	return &Debouncer{
		window:   window,
		callback: callback,
		pending:  make(map[string]*pendingUpdate),
	}
}

// Add queues an event for debouncing.
func (d *Debouncer) Add(path string, kind events.FileUpdateType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[path]; ok {
		existing.timer.Stop()
		existing.kind = mergeUpdateKinds(existing.kind, kind)
		existing.timer = time.AfterFunc(d.window, func() {
			d.fire(path)
		})
		return
	}

	d.pending[path] = &pendingUpdate{
		path: path,
		kind: kind,
		timer: time.AfterFunc(d.window, func() {
			d.fire(path)
		}),
	}
}

// fire executes the callback for a path.
func (d *Debouncer) fire(path string) {
	d.mu.Lock()
	update, ok := d.pending[path]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	stopped := d.stopped
	d.mu.Unlock()

	if !stopped && d.callback != nil {
		d.callback(update.path, update.kind)
	}
}

// Stop stops all pending timers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for _, update := range d.pending {
		update.timer.Stop()
	}
	d.pending = make(map[string]*pendingUpdate)
}

// mergeUpdateKinds combines two update kinds, preferring the more
// significant one.
func mergeUpdateKinds(existing, next events.FileUpdateType) events.FileUpdateType {
	// Removal takes precedence
	if next == events.FileUpdateUnlink || next == events.FileUpdateUnlinkDir {
		return next
	}
	// Creation takes precedence over modification
	if existing == events.FileUpdateAdd || existing == events.FileUpdateAddDir {
		return existing
	}
	return next
}
