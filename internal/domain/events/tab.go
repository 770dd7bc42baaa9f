package events

import "time"

// TabInfo is the tab metadata carried on session events. Cached content is
// deliberately excluded.
type TabInfo struct {
	ID           int64     `json:"id"`
	FilePath     string    `json:"filePath"`
	Title        string    `json:"title"`
	IsModified   bool      `json:"isModified"`
	NeedsRefresh bool      `json:"needsRefresh,omitempty"`
	Missing      bool      `json:"missing,omitempty"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// TabActivatedPayload is the payload for tab_activated events. PreviousID is
// zero when no tab was active before.
type TabActivatedPayload struct {
	Tab        TabInfo `json:"tab"`
	PreviousID int64   `json:"previousId,omitempty"`
}

// TabFlagPayload is the payload for tab_modified, tab_stale and tab_missing
// events.
type TabFlagPayload struct {
	Tab  TabInfo `json:"tab"`
	Flag bool    `json:"flag"`
}

// NewTabOpenedEvent creates a new tab_opened event.
func NewTabOpenedEvent(tab TabInfo) *BaseEvent {
	return NewEvent(EventTypeTabOpened, tab)
}

// NewTabClosedEvent creates a new tab_closed event carrying the removed
// tab's last-known data.
func NewTabClosedEvent(tab TabInfo) *BaseEvent {
	return NewEvent(EventTypeTabClosed, tab)
}

// NewTabActivatedEvent creates a new tab_activated event.
func NewTabActivatedEvent(tab TabInfo, previousID int64) *BaseEvent {
	return NewEvent(EventTypeTabActivated, TabActivatedPayload{
		Tab:        tab,
		PreviousID: previousID,
	})
}

// NewTabModifiedEvent creates a new tab_modified event.
func NewTabModifiedEvent(tab TabInfo, modified bool) *BaseEvent {
	return NewEvent(EventTypeTabModified, TabFlagPayload{Tab: tab, Flag: modified})
}

// NewTabStaleEvent creates a new tab_stale event.
func NewTabStaleEvent(tab TabInfo) *BaseEvent {
	return NewEvent(EventTypeTabStale, TabFlagPayload{Tab: tab, Flag: true})
}

// NewTabMissingEvent creates a new tab_missing event.
func NewTabMissingEvent(tab TabInfo) *BaseEvent {
	return NewEvent(EventTypeTabMissing, TabFlagPayload{Tab: tab, Flag: true})
}

// NewNoTabsOpenEvent creates a new no_tabs_open event.
func NewNoTabsOpenEvent() *BaseEvent {
	return NewEvent(EventTypeNoTabsOpen, nil)
}
