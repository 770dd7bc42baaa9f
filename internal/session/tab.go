// Package session implements the session store: the set of open document
// tabs, the active tab, a bounded most-recently-used ordering, and the
// persisted session snapshot.
package session

import (
	"time"

	"github.com/mdview/mdview/internal/domain/events"
)

// Tab is an open-document handle. The cached content is held separately from
// the metadata and is never persisted.
type Tab struct {
	ID           int64
	FilePath     string
	Title        string
	IsModified   bool
	NeedsRefresh bool
	Missing      bool
	LastAccessed time.Time

	content    string
	hasContent bool
}

// Info returns the event-facing metadata view of the tab.
func (t *Tab) Info() events.TabInfo {
	return events.TabInfo{
		ID:           t.ID,
		FilePath:     t.FilePath,
		Title:        t.Title,
		IsModified:   t.IsModified,
		NeedsRefresh: t.NeedsRefresh,
		Missing:      t.Missing,
		LastAccessed: t.LastAccessed,
	}
}

// clone returns a metadata copy without the cached content.
func (t *Tab) clone() Tab {
	c := *t
	c.content = ""
	c.hasContent = false
	return c
}
