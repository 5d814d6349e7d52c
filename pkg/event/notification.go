package event

import "fmt"

// Type identifies what fired a notification.
type Type int8

const (
	// TypeNone is used for session-level state transitions.
	TypeNone Type = -1

	// TypeNodeCreated indicates a watched node was created.
	TypeNodeCreated Type = 1

	// TypeNodeDeleted indicates a watched node was deleted.
	TypeNodeDeleted Type = 2

	// TypeNodeDataChanged indicates the data of a watched node changed.
	TypeNodeDataChanged Type = 3

	// TypeNodeChildrenChanged indicates the children of a watched node changed.
	TypeNodeChildrenChanged Type = 4

	// TypeNotWatching indicates a watch was removed by the server.
	TypeNotWatching Type = 5
)

// String returns a human-readable type name.
func (t Type) String() string {
	switch t {
	case TypeNone:
		return "NONE"
	case TypeNodeCreated:
		return "NODE_CREATED"
	case TypeNodeDeleted:
		return "NODE_DELETED"
	case TypeNodeDataChanged:
		return "NODE_DATA_CHANGED"
	case TypeNodeChildrenChanged:
		return "NODE_CHILDREN_CHANGED"
	case TypeNotWatching:
		return "NOT_WATCHING"
	default:
		return "UNKNOWN"
	}
}

// State is the session state observed when a notification was raised.
type State int8

const (
	// StateUnknown is the zero value.
	StateUnknown State = iota

	// StateDisconnected indicates the transport to the ensemble was lost.
	// The session may still be alive on the server.
	StateDisconnected

	// StateConnecting indicates the collaborator is (re)establishing transport.
	StateConnecting

	// StateConnected indicates the session is established.
	StateConnected

	// StateConnectedReadOnly indicates the session is established against a
	// read-only server.
	StateConnectedReadOnly

	// StateAuthFailed indicates credential verification failed.
	StateAuthFailed

	// StateExpired indicates the server discarded the session.
	StateExpired

	// StateClosed indicates the handle was closed and is no longer usable.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUnknown:
		return "UNKNOWN"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateConnectedReadOnly:
		return "CONNECTED_READ_ONLY"
	case StateAuthFailed:
		return "AUTH_FAILED"
	case StateExpired:
		return "EXPIRED"
	case StateClosed:
		return "CLOSED"
	default:
		return "INVALID"
	}
}

// Notification is a single watch or session event.
// CBOR encoding uses integer keys so notifications can be captured in traces.
type Notification struct {
	Type  Type   `cbor:"1,keyasint"`
	State State  `cbor:"2,keyasint"`
	Path  string `cbor:"3,keyasint,omitempty"`
}

// Session returns a session-level notification for the given state.
func Session(state State) Notification {
	return Notification{Type: TypeNone, State: state}
}

// IsSession reports whether n is a session-level transition.
func (n Notification) IsSession() bool {
	return n.Type == TypeNone
}

// IsConnected reports whether n signals an established session.
// Read-only sessions count as connected.
func (n Notification) IsConnected() bool {
	return n.Type == TypeNone && (n.State == StateConnected || n.State == StateConnectedReadOnly)
}

// IsExpired reports whether n signals session expiration.
func (n Notification) IsExpired() bool {
	return n.Type == TypeNone && n.State == StateExpired
}

// IsClosed reports whether n signals that the handle became unusable.
func (n Notification) IsClosed() bool {
	return n.Type == TypeNone && n.State == StateClosed
}

// String formats the notification for logs.
func (n Notification) String() string {
	if n.Path == "" {
		return fmt.Sprintf("%s/%s", n.Type, n.State)
	}
	return fmt.Sprintf("%s/%s %s", n.Type, n.State, n.Path)
}

// Callback receives notifications from a collaborator.
type Callback func(Notification)
