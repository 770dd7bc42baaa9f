package devserver

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mdview/mdview/internal/domain/events"
)

// updateRecorder collects watcher notifications behind a mutex so tests can
// poll for OS-delivered events.
type updateRecorder struct {
	mu      sync.Mutex
	updates []events.FileUpdatePayload
}

func (r *updateRecorder) sink(update events.FileUpdatePayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
}

func (r *updateRecorder) all() []events.FileUpdatePayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.FileUpdatePayload, len(r.updates))
	copy(out, r.updates)
	return out
}

// waitFor polls until an update matching the predicate arrives or the
// deadline expires.
func (r *updateRecorder) waitFor(t *testing.T, pred func(events.FileUpdatePayload) bool, desc string) events.FileUpdatePayload {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, u := range r.all() {
			if pred(u) {
				return u
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s; got %+v", desc, r.all())
	return events.FileUpdatePayload{}
}

func startWatcher(t *testing.T, root string, ignore []string) (*Watcher, *updateRecorder) {
	t.Helper()
	rec := &updateRecorder{}
	w := NewWatcher(root, 10, ignore, rec.sink, testLogger())
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })
	return w, rec
}

func isType(kind events.FileUpdateType) func(events.FileUpdatePayload) bool {
	return func(u events.FileUpdatePayload) bool { return u.Type == kind }
}

func TestWatcher_EmitsReadyOnStart(t *testing.T) {
	_, rec := startWatcher(t, t.TempDir(), nil)

	got := rec.all()
	if len(got) == 0 || got[0].Type != events.FileUpdateReady {
		t.Fatalf("first update = %+v, want ready", got)
	}
}

func TestWatcher_FileCreate(t *testing.T) {
	root := t.TempDir()
	_, rec := startWatcher(t, root, nil)

	if err := os.WriteFile(filepath.Join(root, "doc.md"), []byte("# hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	u := rec.waitFor(t, isType(events.FileUpdateAdd), "add update")
	if u.File != "doc.md" {
		t.Errorf("File = %q, want %q", u.File, "doc.md")
	}
}

func TestWatcher_FileWrite(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.md")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, rec := startWatcher(t, root, nil)

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	u := rec.waitFor(t, isType(events.FileUpdateChange), "change update")
	if u.File != "doc.md" {
		t.Errorf("File = %q, want %q", u.File, "doc.md")
	}
}

func TestWatcher_FileRemove(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.md")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, rec := startWatcher(t, root, nil)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	u := rec.waitFor(t, isType(events.FileUpdateUnlink), "unlink update")
	if u.File != "doc.md" {
		t.Errorf("File = %q, want %q", u.File, "doc.md")
	}
}

func TestWatcher_DirectoryCreateIsWatched(t *testing.T) {
	root := t.TempDir()
	w, rec := startWatcher(t, root, nil)

	sub := filepath.Join(root, "notes")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	rec.waitFor(t, isType(events.FileUpdateAddDir), "addDir update")

	// The new directory must itself be watched.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && w.WatchedDirs() < 2 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := w.WatchedDirs(); got != 2 {
		t.Fatalf("WatchedDirs() = %d, want 2", got)
	}

	if err := os.WriteFile(filepath.Join(sub, "inner.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	u := rec.waitFor(t, func(u events.FileUpdatePayload) bool {
		return u.Type == events.FileUpdateAdd && u.File == filepath.Join("notes", "inner.md")
	}, "add update from new subdirectory")
	_ = u
}

func TestWatcher_IgnorePatterns(t *testing.T) {
	root := t.TempDir()
	_, rec := startWatcher(t, root, []string{".git", "*.tmp"})

	if err := os.WriteFile(filepath.Join(root, "scratch.tmp"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "doc.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec.waitFor(t, func(u events.FileUpdatePayload) bool {
		return u.Type == events.FileUpdateAdd && u.File == "doc.md"
	}, "add update for doc.md")

	for _, u := range rec.all() {
		if u.File == "scratch.tmp" {
			t.Errorf("ignored file produced update %+v", u)
		}
	}
}

func TestWatcher_IgnoredDirectoryNotWatched(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755); err != nil {
		t.Fatal(err)
	}

	w, _ := startWatcher(t, root, []string{".git"})

	if got := w.WatchedDirs(); got != 1 {
		t.Errorf("WatchedDirs() = %d, want 1", got)
	}
}

func TestWatcher_StopEmitsStop(t *testing.T) {
	root := t.TempDir()
	w, rec := startWatcher(t, root, nil)

	if !w.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if w.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}

	updates := rec.all()
	if len(updates) == 0 || updates[len(updates)-1].Type != events.FileUpdateStop {
		t.Errorf("last update = %+v, want stop", updates)
	}

	// Stop is idempotent.
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if got := rec.all(); got[len(got)-1].Type != events.FileUpdateStop || len(got) != len(updates) {
		t.Errorf("second Stop emitted extra updates: %+v", got)
	}
}

func TestWatcher_CountsEmitted(t *testing.T) {
	root := t.TempDir()
	w, rec := startWatcher(t, root, nil)

	if got := w.Emitted(); got != 1 { // ready
		t.Fatalf("Emitted() = %d, want 1", got)
	}

	if err := os.WriteFile(filepath.Join(root, "a.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec.waitFor(t, isType(events.FileUpdateAdd), "add update")

	if got := w.Emitted(); got < 2 {
		t.Errorf("Emitted() = %d, want >= 2", got)
	}
}
