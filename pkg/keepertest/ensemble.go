package keepertest

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/keeper-client/keeper-go/pkg/connection"
	"github.com/keeper-client/keeper-go/pkg/event"
)

// PasswordLen is the length of generated session passwords.
const PasswordLen = 16

// ErrNoEnsemble is returned by Dial when the request names no servers.
var ErrNoEnsemble = errors.New("keepertest: no servers in request")

// serverSession is the ensemble-side view of a session.
type serverSession struct {
	password []byte
	timeout  time.Duration
}

// Ensemble is a simulated coordination ensemble.
// The zero value is not usable; use NewEnsemble.
type Ensemble struct {
	mu sync.Mutex

	nextID   int64
	sessions map[int64]*serverSession
	conns    []*Conn

	dials    int
	open     int
	maxOpen  int
	requests []connection.DialRequest

	// Fault injection
	dialErr      error
	authErr      error
	closeErr     error
	neverConnect bool
	authFailed   bool
	readOnly     bool
	connectDelay time.Duration
}

// NewEnsemble creates an empty ensemble.
func NewEnsemble() *Ensemble {
	return &Ensemble{
		nextID:   0x100,
		sessions: make(map[int64]*serverSession),
	}
}

// Dial implements connection.Dialer.
func (e *Ensemble) Dial(ctx context.Context, req connection.DialRequest) (connection.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Servers) == 0 {
		return nil, ErrNoEnsemble
	}

	e.mu.Lock()
	e.dials++
	e.requests = append(e.requests, req)
	if e.dialErr != nil {
		err := e.dialErr
		e.mu.Unlock()
		return nil, err
	}

	c := &Conn{ens: e, callback: req.Callback, closeErr: e.closeErr, authErr: e.authErr}
	resumeRejected := false
	if req.Resume != nil {
		s, ok := e.sessions[req.Resume.ID]
		if ok && bytes.Equal(req.Resume.Password, s.password) {
			c.id = req.Resume.ID
			c.password = append([]byte(nil), s.password...)
		} else {
			resumeRejected = true
		}
	}
	if c.id == 0 && !resumeRejected {
		c.id = e.nextID
		e.nextID++
		c.password = newPassword()
		e.sessions[c.id] = &serverSession{password: c.password, timeout: req.SessionTimeout}
	}

	e.conns = append(e.conns, c)
	e.open++
	e.maxOpen = max(e.maxOpen, e.open)

	state := event.StateConnected
	switch {
	case resumeRejected:
		state = event.StateExpired
	case e.authFailed:
		state = event.StateAuthFailed
	case e.readOnly:
		state = event.StateConnectedReadOnly
	}
	never := e.neverConnect && !resumeRejected
	delay := e.connectDelay
	e.mu.Unlock()

	switch {
	case never:
	case delay > 0:
		time.AfterFunc(delay, func() { c.Emit(event.Session(state)) })
	default:
		c.Emit(event.Session(state))
	}
	return c, nil
}

// Expire ends the session of c on the ensemble side and notifies c.
func (e *Ensemble) Expire(c *Conn) {
	e.mu.Lock()
	delete(e.sessions, c.id)
	e.mu.Unlock()
	c.Emit(event.Session(event.StateExpired))
}

// Drop reports c as unusable without ending its session, as a client library
// does after it gives up on the transport.
func (e *Ensemble) Drop(c *Conn) {
	c.Emit(event.Session(event.StateClosed))
}

// Disconnect reports a transient transport loss on c.
func (e *Ensemble) Disconnect(c *Conn) {
	c.Emit(event.Session(event.StateDisconnected))
}

// Current returns the most recently dialed handle that is still open, or nil.
func (e *Ensemble) Current() *Conn {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.conns) - 1; i >= 0; i-- {
		if e.conns[i].Open() {
			return e.conns[i]
		}
	}
	return nil
}

// Conns returns every handle dialed so far, in dial order.
func (e *Ensemble) Conns() []*Conn {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Conn(nil), e.conns...)
}

// HasSession reports whether the ensemble still holds session id.
func (e *Ensemble) HasSession(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessions[id]
	return ok
}

// SessionCount returns the number of live server-side sessions.
func (e *Ensemble) SessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// DialCount returns the number of Dial calls.
func (e *Ensemble) DialCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dials
}

// OpenCount returns the number of handles neither closed nor detached.
func (e *Ensemble) OpenCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// MaxOpen returns the highest OpenCount observed.
func (e *Ensemble) MaxOpen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxOpen
}

// Requests returns every dial request received, in order.
func (e *Ensemble) Requests() []connection.DialRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]connection.DialRequest(nil), e.requests...)
}

// LastRequest returns the most recent dial request.
func (e *Ensemble) LastRequest() (connection.DialRequest, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.requests) == 0 {
		return connection.DialRequest{}, false
	}
	return e.requests[len(e.requests)-1], true
}

// SetDialError makes subsequent dials fail with err. nil restores success.
func (e *Ensemble) SetDialError(err error) {
	e.mu.Lock()
	e.dialErr = err
	e.mu.Unlock()
}

// SetAuthError makes AddAuth on subsequently dialed handles fail with err.
func (e *Ensemble) SetAuthError(err error) {
	e.mu.Lock()
	e.authErr = err
	e.mu.Unlock()
}

// SetCloseError makes Close on subsequently dialed handles fail with err.
// The handle is still released.
func (e *Ensemble) SetCloseError(err error) {
	e.mu.Lock()
	e.closeErr = err
	e.mu.Unlock()
}

// SetNeverConnect makes subsequently dialed handles never report Connected.
func (e *Ensemble) SetNeverConnect(never bool) {
	e.mu.Lock()
	e.neverConnect = never
	e.mu.Unlock()
}

// SetAuthFailed makes subsequently dialed handles report AuthFailed instead of
// Connected.
func (e *Ensemble) SetAuthFailed(failed bool) {
	e.mu.Lock()
	e.authFailed = failed
	e.mu.Unlock()
}

// SetReadOnly makes subsequently dialed handles report ConnectedReadOnly.
func (e *Ensemble) SetReadOnly(ro bool) {
	e.mu.Lock()
	e.readOnly = ro
	e.mu.Unlock()
}

// SetConnectDelay delays the initial session notification of subsequently
// dialed handles by d.
func (e *Ensemble) SetConnectDelay(d time.Duration) {
	e.mu.Lock()
	e.connectDelay = d
	e.mu.Unlock()
}

func (e *Ensemble) release(c *Conn, endSession bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open--
	if endSession {
		delete(e.sessions, c.id)
	}
}

func newPassword() []byte {
	p := make([]byte, PasswordLen)
	_, _ = rand.Read(p)
	return p
}

var _ connection.Dialer = (*Ensemble)(nil)
