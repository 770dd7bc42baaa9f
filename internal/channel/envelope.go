// Package channel implements the notification channel to the backend
// watcher service: a duplex transport carrying named events, with optional
// request/reply correlation.
package channel

import "encoding/json"

// Envelope is the wire frame exchanged with the backend. Frames carrying a
// non-zero ID are requests or their replies; everything else is a plain
// named event.
type Envelope struct {
	Event   string          `json:"event"`
	ID      int64           `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope, marshaling the payload.
func NewEnvelope(event string, id int64, payload interface{}) (Envelope, error) {
	env := Envelope{Event: event, ID: id}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		env.Payload = data
	}
	return env, nil
}

// Well-known event names on the wire.
const (
	// EventConnected is the welcome event the backend sends on attach.
	EventConnected = "connected"

	// EventDisconnect is the backend's explicit goodbye. Clients treat
	// the closure as server-initiated and do not retry.
	EventDisconnect = "disconnect"

	// EventFileUpdate carries a watcher notification.
	EventFileUpdate = "fileUpdate"

	// EventGetWatcherStats is the stats request/reply pair.
	EventGetWatcherStats = "getWatcherStats"
)
