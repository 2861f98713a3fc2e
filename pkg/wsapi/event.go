package wsapi

import "binconn/internal/ws"

// EventType tells what an Event reports.
type EventType int

const (
	// EventOpen follows every successful connect, including reconnects.
	EventOpen EventType = iota
	// EventMessage carries a frame that did not answer a pending request.
	EventMessage
	// EventClosed follows Close or an unexpected drop. Err is set for drops.
	EventClosed
	// EventError reports a failure outside any request, such as reconnect giving up.
	EventError
	// EventReconnecting is sent before each reconnect attempt.
	EventReconnecting
)

var eventTypeNames = [...]string{"open", "message", "closed", "error", "reconnecting"}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return "unknown"
	}
	return eventTypeNames[t]
}

// Event is delivered to the callback given to Connect.
type Event struct {
	Type    EventType
	Data    []byte
	Err     error
	Attempt int
}

// ConnState is the lifecycle state reported by Client.State.
type ConnState = ws.ConnState

const (
	StateDisconnected = ws.StateDisconnected
	StateConnecting   = ws.StateConnecting
	StateConnected    = ws.StateConnected
	StateClosing      = ws.StateClosing
)
