package connection

import (
	"context"
	"time"

	"github.com/keeper-client/keeper-go/pkg/event"
	"github.com/keeper-client/keeper-go/pkg/session"
)

// DialRequest describes a session to open.
type DialRequest struct {
	// Servers lists the ensemble endpoints in preference order.
	Servers []string

	// Namespace is the optional prefix scoping the session.
	Namespace string

	// SessionTimeout is the requested session timeout.
	SessionTimeout time.Duration

	// Callback receives every notification for the session. It is invoked on
	// the collaborator's goroutine and must not block.
	Callback event.Callback

	// Resume, when set, asks the collaborator to resume an existing session
	// instead of creating one.
	Resume *session.State
}

// Dialer opens session handles. This is the contract consumed from the
// underlying coordination-service client library.
type Dialer interface {
	// Dial starts opening a session. It returns once the handle exists; the
	// session is established when Callback receives {None, Connected}.
	// An error means no handle was created.
	Dial(ctx context.Context, req DialRequest) (Conn, error)
}

// Conn is an open session handle.
type Conn interface {
	// SessionID returns the server-assigned session ID.
	SessionID() int64

	// SessionPassword returns the session password used for resumption.
	SessionPassword() []byte

	// AddAuth attaches credentials to the session.
	AddAuth(scheme string, token []byte) error

	// Close ends the session and releases the handle.
	Close() error
}

// Detacher is implemented by handles that can release their transport
// without ending the server-side session.
type Detacher interface {
	Detach() error
}

// Sink receives every notification observed by the Manager.
// Enqueue must not block.
type Sink interface {
	Enqueue(n event.Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(n event.Notification) error

// Enqueue implements Sink.
func (f SinkFunc) Enqueue(n event.Notification) error {
	return f(n)
}
