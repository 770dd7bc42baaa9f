package storage

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mdview/mdview/internal/domain"
)

// File stores each key as a file inside a directory. Writes go through a
// temporary file and rename so a crash mid-write leaves the previous
// snapshot intact.
type File struct {
	dir string
}

// NewFile creates the directory if needed and returns a file storage.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &File{dir: dir}, nil
}

// Get returns the value stored under key.
func (f *File) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set stores value under key.
func (f *File) Set(key string, value []byte) error {
	path := f.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Remove deletes the value stored under key.
func (f *File) Remove(key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Close implements ports.Storage.
func (f *File) Close() error {
	return nil
}

// path maps a key to a filename, replacing separators that would escape the
// directory.
func (f *File) path(key string) string {
	name := strings.NewReplacer("/", "-", "\\", "-", "..", "-").Replace(key)
	return filepath.Join(f.dir, name+".json")
}
