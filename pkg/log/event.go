package log

import (
	"time"

	"github.com/keeper-client/keeper-go/pkg/event"
)

// Event is one trace record of a client's connection lifecycle.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ClientID identifies the client instance (UUID).
	ClientID string `cbor:"2,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"3,keyasint"`

	// Servers is the connect string of the ensemble.
	Servers string `cbor:"4,keyasint,omitempty"`

	// SessionID is the session the event belongs to, if one was known.
	SessionID int64 `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	StateChange  *StateChangeEvent   `cbor:"10,keyasint,omitempty"`
	Notification *event.Notification `cbor:"11,keyasint,omitempty"`
	Error        *ErrorEventData     `cbor:"12,keyasint,omitempty"`
	Retry        *RetryEvent         `cbor:"13,keyasint,omitempty"`
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a connection or session state change.
	CategoryState Category = 0
	// CategoryNotification indicates a notification from the collaborator.
	CategoryNotification Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
	// CategoryRetry indicates a retry decision.
	CategoryRetry Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryNotification:
		return "NOTIFICATION"
	case CategoryError:
		return "ERROR"
	case CategoryRetry:
		return "RETRY"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory returns the category with the given name.
func ParseCategory(name string) (Category, bool) {
	for c := CategoryState; c <= CategoryRetry; c++ {
		if c.String() == name {
			return c, true
		}
	}
	return 0, false
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`

	// Resumed is set on session events that resumed a cached session.
	Resumed bool `cbor:"5,keyasint,omitempty"`

	// Duration of the connect attempt, for session events.
	Duration time.Duration `cbor:"6,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection manager state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a session was established or ended.
	StateEntitySession StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// ErrorSource indicates which component reported an error.
type ErrorSource uint8

const (
	// ErrorSourceConnect is a failed connect attempt.
	ErrorSourceConnect ErrorSource = 0
	// ErrorSourceClose is a failure while closing a handle.
	ErrorSourceClose ErrorSource = 1
	// ErrorSourceWatcher is a watcher that panicked during delivery.
	ErrorSourceWatcher ErrorSource = 2
	// ErrorSourceDispatch is a notification the dispatcher refused.
	ErrorSourceDispatch ErrorSource = 3
)

// String returns the error source name.
func (s ErrorSource) String() string {
	switch s {
	case ErrorSourceConnect:
		return "CONNECT"
	case ErrorSourceClose:
		return "CLOSE"
	case ErrorSourceWatcher:
		return "WATCHER"
	case ErrorSourceDispatch:
		return "DISPATCH"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors from any component.
type ErrorEventData struct {
	// Source is the reporting component.
	Source ErrorSource `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the fault code (if applicable).
	Code *int32 `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}

// RetryEvent captures one retry classification.
type RetryEvent struct {
	// Code is the fault code of the classified error (nil if it had none).
	Code *int32 `cbor:"1,keyasint,omitempty"`

	// Retry is the verdict.
	Retry bool `cbor:"2,keyasint"`

	// Closed is set if the classification closed the connection.
	Closed bool `cbor:"3,keyasint,omitempty"`

	// Message is the classified error's message.
	Message string `cbor:"4,keyasint,omitempty"`
}
