package session

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/mdview/mdview/internal/domain"
	"github.com/mdview/mdview/internal/domain/ports"
)

// SnapshotKey is the storage key the session snapshot lives under.
const SnapshotKey = "mdview.session"

// TabSnapshot is the persisted metadata of one tab. Cached content is never
// part of the snapshot.
type TabSnapshot struct {
	ID           int64     `json:"id"`
	FilePath     string    `json:"filePath"`
	Title        string    `json:"title"`
	IsModified   bool      `json:"isModified"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// Snapshot is the durable session state written after every mutating
// operation and read once at startup.
type Snapshot struct {
	Tabs         []TabSnapshot `json:"tabs"`
	ActiveTabID  int64         `json:"activeTabId,omitempty"`
	RecentlyUsed []int64       `json:"recentlyUsed"`
	NextID       int64         `json:"nextId"`
}

// LoadSnapshot reads and decodes the session snapshot. A missing snapshot is
// returned as an empty one, not an error.
func LoadSnapshot(storage ports.Storage) (Snapshot, error) {
	data, err := storage.Get(SnapshotKey)
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return Snapshot{NextID: 1}, nil
		}
		return Snapshot{NextID: 1}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{NextID: 1}, err
	}
	if snap.NextID < 1 {
		snap.NextID = 1
	}
	return snap, nil
}
