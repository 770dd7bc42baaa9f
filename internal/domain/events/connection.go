package events

// DisconnectReason distinguishes why the channel closed.
type DisconnectReason string

const (
	// DisconnectReasonServer means the backend closed the channel on
	// purpose. No automatic reconnect is attempted.
	DisconnectReasonServer DisconnectReason = "server"

	// DisconnectReasonTransport means the connection was lost at the
	// transport level. The client schedules a reconnect.
	DisconnectReasonTransport DisconnectReason = "transport"

	// DisconnectReasonClient means disconnect() was called locally.
	DisconnectReasonClient DisconnectReason = "client"
)

// ConnectedPayload is the payload for connected events.
type ConnectedPayload struct {
	URL string `json:"url"`
}

// DisconnectedPayload is the payload for disconnected events.
type DisconnectedPayload struct {
	Reason DisconnectReason `json:"reason"`
	Error  string           `json:"error,omitempty"`
}

// ReconnectedPayload is the payload for reconnected events.
type ReconnectedPayload struct {
	Attempts int `json:"attempts"`
}

// ReconnectFailedPayload is the payload for the terminal reconnect_failed event.
type ReconnectFailedPayload struct {
	Attempts int `json:"attempts"`
}

// StateChangedPayload is the payload for connection_state_changed events.
type StateChangedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NewConnectedEvent creates a new connected event.
func NewConnectedEvent(url string) *BaseEvent {
	return NewEvent(EventTypeConnected, ConnectedPayload{URL: url})
}

// NewDisconnectedEvent creates a new disconnected event.
func NewDisconnectedEvent(reason DisconnectReason, errMsg string) *BaseEvent {
	return NewEvent(EventTypeDisconnected, DisconnectedPayload{
		Reason: reason,
		Error:  errMsg,
	})
}

// NewReconnectedEvent creates a new reconnected event.
func NewReconnectedEvent(attempts int) *BaseEvent {
	return NewEvent(EventTypeReconnected, ReconnectedPayload{Attempts: attempts})
}

// NewReconnectFailedEvent creates a new reconnect_failed event.
func NewReconnectFailedEvent(attempts int) *BaseEvent {
	return NewEvent(EventTypeReconnectFailed, ReconnectFailedPayload{Attempts: attempts})
}

// NewStateChangedEvent creates a new connection_state_changed event.
func NewStateChangedEvent(from, to string) *BaseEvent {
	return NewEvent(EventTypeStateChanged, StateChangedPayload{From: from, To: to})
}
