package events

// FileUpdateType is the type tag carried by inbound fileUpdate envelopes.
// The vocabulary matches the backend watcher service.
type FileUpdateType string

const (
	FileUpdateChange       FileUpdateType = "change"
	FileUpdateAdd          FileUpdateType = "add"
	FileUpdateUnlink       FileUpdateType = "unlink"
	FileUpdateAddDir       FileUpdateType = "addDir"
	FileUpdateUnlinkDir    FileUpdateType = "unlinkDir"
	FileUpdateError        FileUpdateType = "error"
	FileUpdateReady        FileUpdateType = "ready"
	FileUpdateStop         FileUpdateType = "stop"
	FileUpdateWatcherError FileUpdateType = "watcherError"
)

// fileUpdateEvents maps wire type tags to local event types.
var fileUpdateEvents = map[FileUpdateType]EventType{
	FileUpdateChange:       EventTypeFileChanged,
	FileUpdateAdd:          EventTypeFileAdded,
	FileUpdateUnlink:       EventTypeFileRemoved,
	FileUpdateAddDir:       EventTypeDirAdded,
	FileUpdateUnlinkDir:    EventTypeDirRemoved,
	FileUpdateError:        EventTypeFileError,
	FileUpdateReady:        EventTypeWatcherReady,
	FileUpdateStop:         EventTypeWatcherStopped,
	FileUpdateWatcherError: EventTypeWatcherError,
}

// ClassifyFileUpdate returns the local event type for a wire type tag.
// The second return value is false for unrecognized tags.
func ClassifyFileUpdate(t FileUpdateType) (EventType, bool) {
	et, ok := fileUpdateEvents[t]
	return et, ok
}

// FileUpdatePayload is the payload carried by fileUpdate envelopes and
// re-emitted unchanged on the local watcher events.
type FileUpdatePayload struct {
	Type FileUpdateType `json:"type"`
	File string         `json:"file,omitempty"`
	Data string         `json:"data,omitempty"`
}

// NewFileUpdateEvent re-emits an inbound fileUpdate as a local event.
// The caller is expected to have classified the type tag already.
func NewFileUpdateEvent(eventType EventType, payload FileUpdatePayload) *BaseEvent {
	return NewEvent(eventType, payload)
}

// FileUpdateFrom extracts the fileUpdate payload from a local watcher event.
func FileUpdateFrom(e Event) (FileUpdatePayload, bool) {
	base, ok := e.(*BaseEvent)
	if !ok {
		return FileUpdatePayload{}, false
	}
	payload, ok := base.Payload.(FileUpdatePayload)
	return payload, ok
}
