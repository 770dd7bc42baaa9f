package devserver

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mdview/mdview/internal/domain/events"
)

// UpdateSink receives watcher notifications ready for broadcast.
type UpdateSink func(update events.FileUpdatePayload)

// Watcher monitors the served root recursively and reports changes in the
// wire vocabulary the live-sync client understands.
type Watcher struct {
	root           string
	debounceMS     int
	ignorePatterns []string
	sink           UpdateSink
	logger         *slog.Logger

	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	running  bool
	cancel   context.CancelFunc
	dirs     map[string]struct{}
	debounce *Debouncer

	emitted atomic.Int64
}

// NewWatcher creates a new file system watcher over root.
func NewWatcher(root string, debounceMS int, ignorePatterns []string, sink UpdateSink, logger *slog.Logger) *Watcher {
	return &Watcher{
		root:           root,
		debounceMS:     debounceMS,
		ignorePatterns: ignorePatterns,
		sink:           sink,
		logger:         logger,
		dirs:           make(map[string]struct{}),
	}
}

// Start begins watching. A ready notification is emitted once the initial
// walk completes.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.debounce = NewDebouncer(time.Duration(w.debounceMS)*time.Millisecond, w.emitDebounced)
	w.running = true
	w.mu.Unlock()

	if err := w.addWatchRecursive(w.root); err != nil {
		_ = w.Stop()
		return err
	}

	go w.eventLoop(watchCtx)

	w.logger.Info("file watcher started", "root", w.root, "debounce_ms", w.debounceMS)
	w.emit(events.FileUpdatePayload{Type: events.FileUpdateReady})
	return nil
}

// Stop terminates watching and emits a stop notification.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false

	if w.cancel != nil {
		w.cancel()
	}
	if w.debounce != nil {
		w.debounce.Stop()
	}

	var err error
	if w.watcher != nil {
		err = w.watcher.Close()
		w.watcher = nil
	}
	w.mu.Unlock()

	w.logger.Info("file watcher stopped")
	w.emit(events.FileUpdatePayload{Type: events.FileUpdateStop})
	return err
}

// IsRunning returns true if the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// WatchedDirs returns the number of directories currently watched.
func (w *Watcher) WatchedDirs() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.dirs)
}

// Emitted returns the number of notifications emitted so far.
func (w *Watcher) Emitted() int64 {
	return w.emitted.Load()
}

// addWatchRecursive adds watches to a directory and all subdirectories.
func (w *Watcher) addWatchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files/dirs we can't access
		}
		if !info.IsDir() {
			return nil
		}
		if w.shouldIgnore(path) {
			return filepath.SkipDir
		}

		w.mu.Lock()
		watcher := w.watcher
		if watcher == nil {
			w.mu.Unlock()
			return filepath.SkipAll
		}
		if err := watcher.Add(path); err != nil {
			w.mu.Unlock()
			w.logger.Warn("failed to add watch", "path", path, "error", err)
			return nil
		}
		w.dirs[path] = struct{}{}
		w.mu.Unlock()
		return nil
	})
}

// eventLoop handles fsnotify events.
func (w *Watcher) eventLoop(ctx context.Context) {
	w.mu.RLock()
	watcher := w.watcher
	w.mu.RUnlock()
	if watcher == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
			w.emit(events.FileUpdatePayload{
				Type: events.FileUpdateWatcherError,
				Data: err.Error(),
			})
		}
	}
}

// handleEvent classifies a single fsnotify event into the wire vocabulary.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		relPath = event.Name
	}

	if w.shouldIgnore(event.Name) || w.shouldIgnore(relPath) {
		return
	}

	var kind events.FileUpdateType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		kind = events.FileUpdateAdd
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			kind = events.FileUpdateAddDir
			_ = w.addWatchRecursive(event.Name)
		}

	case event.Op&fsnotify.Write == fsnotify.Write:
		kind = events.FileUpdateChange

	case event.Op&fsnotify.Remove == fsnotify.Remove,
		event.Op&fsnotify.Rename == fsnotify.Rename:
		// A rename reaches clients as a removal; the new name shows up
		// as a separate add.
		kind = events.FileUpdateUnlink
		w.mu.Lock()
		if _, wasDir := w.dirs[event.Name]; wasDir {
			delete(w.dirs, event.Name)
			kind = events.FileUpdateUnlinkDir
		}
		w.mu.Unlock()

	default:
		return // Ignore chmod events
	}

	w.debounce.Add(relPath, kind)
}

// emitDebounced is called after the debounce window expires.
func (w *Watcher) emitDebounced(path string, kind events.FileUpdateType) {
	w.emit(events.FileUpdatePayload{Type: kind, File: path})
	w.logger.Debug("file update", "path", path, "type", string(kind))
}

func (w *Watcher) emit(update events.FileUpdatePayload) {
	w.emitted.Add(1)
	if w.sink != nil {
		w.sink(update)
	}
}

// shouldIgnore checks if a path should be ignored.
func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)

	for _, pattern := range w.ignorePatterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		for _, part := range splitPath(path) {
			if matched, _ := filepath.Match(pattern, part); matched {
				return true
			}
		}
	}
	return false
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	var parts []string
	for path != "" && path != "/" && path != "." {
		dir, file := filepath.Split(path)
		if file != "" {
			parts = append([]string{file}, parts...)
		}
		path = filepath.Clean(dir)
	}
	return parts
}
