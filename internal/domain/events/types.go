// Package events defines all event types used in mdview.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Connection events
	EventTypeConnected       EventType = "connected"
	EventTypeDisconnected    EventType = "disconnected"
	EventTypeReconnected     EventType = "reconnected"
	EventTypeReconnectFailed EventType = "reconnect_failed"
	EventTypeStateChanged    EventType = "connection_state_changed"

	// Watcher events (one per inbound fileUpdate type tag)
	EventTypeFileChanged    EventType = "file_changed"
	EventTypeFileAdded      EventType = "file_added"
	EventTypeFileRemoved    EventType = "file_removed"
	EventTypeDirAdded       EventType = "directory_added"
	EventTypeDirRemoved     EventType = "directory_removed"
	EventTypeFileError      EventType = "file_error"
	EventTypeWatcherReady   EventType = "watcher_ready"
	EventTypeWatcherStopped EventType = "watcher_stopped"
	EventTypeWatcherError   EventType = "watcher_error"

	// Session events
	EventTypeTabOpened    EventType = "tab_opened"
	EventTypeTabClosed    EventType = "tab_closed"
	EventTypeTabActivated EventType = "tab_activated"
	EventTypeTabModified  EventType = "tab_modified"
	EventTypeTabStale     EventType = "tab_stale"
	EventTypeTabMissing   EventType = "tab_missing"
	EventTypeNoTabsOpen   EventType = "no_tabs_open"
)

// Event is the base interface for all events.
type Event interface {
	// Type returns the event type.
	Type() EventType

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// ToJSON serializes the event to JSON.
	ToJSON() ([]byte, error)
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType EventType   `json:"event"`
	EventTime time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Type returns the event type.
func (e *BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// ToJSON serializes the event to JSON.
func (e *BaseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// NewEvent creates a new base event with the given type and payload.
func NewEvent(eventType EventType, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   payload,
	}
}
