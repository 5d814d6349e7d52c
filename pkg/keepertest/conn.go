package keepertest

import (
	"sync"

	"github.com/keeper-client/keeper-go/pkg/connection"
	"github.com/keeper-client/keeper-go/pkg/event"
)

// Auth is a credential attached to a handle.
type Auth struct {
	Scheme string
	Token  []byte
}

// Conn is a simulated session handle.
type Conn struct {
	ens      *Ensemble
	id       int64
	password []byte
	callback event.Callback
	closeErr error
	authErr  error

	mu       sync.Mutex
	closed   bool
	detached bool
	auths    []Auth
}

// SessionID implements connection.Conn.
func (c *Conn) SessionID() int64 { return c.id }

// SessionPassword implements connection.Conn.
func (c *Conn) SessionPassword() []byte {
	return append([]byte(nil), c.password...)
}

// AddAuth implements connection.Conn.
func (c *Conn) AddAuth(scheme string, token []byte) error {
	if c.authErr != nil {
		return c.authErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auths = append(c.auths, Auth{Scheme: scheme, Token: append([]byte(nil), token...)})
	return nil
}

// Close implements connection.Conn. It ends the server-side session.
func (c *Conn) Close() error {
	if c.release(func() { c.closed = true }) {
		c.ens.release(c, true)
	}
	return c.closeErr
}

// Detach implements connection.Detacher. It releases the handle and keeps
// the server-side session resumable.
func (c *Conn) Detach() error {
	if c.release(func() { c.detached = true }) {
		c.ens.release(c, false)
	}
	return nil
}

// Emit delivers n to the handle's callback unless the handle was released.
func (c *Conn) Emit(n event.Notification) {
	if !c.Open() || c.callback == nil {
		return
	}
	c.callback(n)
}

// Open reports whether the handle is neither closed nor detached.
func (c *Conn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && !c.detached
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Detached reports whether Detach was called.
func (c *Conn) Detached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detached
}

// Auths returns the credentials attached so far.
func (c *Conn) Auths() []Auth {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Auth(nil), c.auths...)
}

// release marks the handle released once and reports whether this call did it.
func (c *Conn) release(mark func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.detached {
		return false
	}
	mark()
	return true
}

var (
	_ connection.Conn     = (*Conn)(nil)
	_ connection.Detacher = (*Conn)(nil)
)
