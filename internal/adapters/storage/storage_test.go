package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mdview/mdview/internal/domain"
	"github.com/mdview/mdview/internal/domain/ports"
)

// each backend must satisfy the same contract
func backends(t *testing.T) map[string]ports.Storage {
	t.Helper()

	file, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}

	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]ports.Storage{
		"memory": NewMemory(),
		"file":   file,
		"sqlite": sqlite,
	}
}

func TestStorage_RoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Set("session", []byte(`{"tabs":[]}`)); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			got, err := store.Get("session")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if string(got) != `{"tabs":[]}` {
				t.Errorf("Get() = %q", got)
			}

			// Overwrite replaces, not appends
			if err := store.Set("session", []byte(`v2`)); err != nil {
				t.Fatalf("second Set() error = %v", err)
			}
			got, _ = store.Get("session")
			if string(got) != "v2" {
				t.Errorf("Get() after overwrite = %q, want v2", got)
			}
		})
	}
}

func TestStorage_MissingKey(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Get("absent"); !errors.Is(err, domain.ErrKeyNotFound) {
				t.Errorf("Get(absent) error = %v, want ErrKeyNotFound", err)
			}
		})
	}
}

func TestStorage_Remove(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_ = store.Set("k", []byte("v"))
			if err := store.Remove("k"); err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			if _, err := store.Get("k"); !errors.Is(err, domain.ErrKeyNotFound) {
				t.Errorf("Get() after Remove error = %v, want ErrKeyNotFound", err)
			}

			// Removing an absent key is not an error
			if err := store.Remove("k"); err != nil {
				t.Errorf("Remove(absent) error = %v", err)
			}
		})
	}
}

func TestFile_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	first, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}
	_ = first.Set("session", []byte("persisted"))

	second, err := NewFile(dir)
	if err != nil {
		t.Fatalf("reopening NewFile() error = %v", err)
	}
	got, err := second.Get("session")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("Get() = %q, want persisted", got)
	}
}

func TestFile_KeySanitization(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile() error = %v", err)
	}

	if err := store.Set("../escape/attempt", []byte("v")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// Nothing may be written outside the storage directory
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries in dir = %d, want 1", len(entries))
	}

	got, err := store.Get("../escape/attempt")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get() = %q, want v", got)
	}
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	first, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	_ = first.Set("session", []byte("persisted"))
	_ = first.Close()

	second, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("reopening NewSQLite() error = %v", err)
	}
	defer func() { _ = second.Close() }()

	got, err := second.Get("session")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("Get() = %q, want persisted", got)
	}
}
