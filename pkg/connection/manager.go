package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keeper-client/keeper-go/pkg/ensemble"
	"github.com/keeper-client/keeper-go/pkg/session"
)

// Connection errors.
var (
	ErrConnectionFailed = errors.New("connection failed")
	ErrTimeout          = errors.New("connection timeout")
	ErrInterrupted      = errors.New("connection interrupted")
	ErrCredentials      = errors.New("credentials rejected")
)

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no handle exists.
	StateDisconnected State = iota

	// StateConnecting indicates a connect attempt is in progress.
	StateConnecting

	// StateConnected indicates an established session.
	StateConnected
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Credentials are attached to every newly established session.
type Credentials struct {
	Scheme string
	Token  []byte
}

// Config configures a Manager.
type Config struct {
	// Ensemble is the validated server set. Required.
	Ensemble *ensemble.Ensemble

	// SessionTimeout is passed to the collaborator on every dial.
	SessionTimeout time.Duration

	// Credentials, if set, are attached once per successful connect.
	Credentials *Credentials

	// Logger is the optional logger for lifecycle output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Attempt describes the outcome of one dial.
type Attempt struct {
	// Resumed is true if the attempt tried to resume a cached session.
	Resumed bool

	// Reused is true if the ensemble accepted the resumption.
	Reused bool

	// Session is the established session (zero on failure).
	Session session.State

	// Duration is the time from dial to outcome.
	Duration time.Duration

	// Err is nil on success.
	Err error
}

// Manager owns the session handle of one client.
type Manager struct {
	// mu serializes Connect, Close, Detach and IsClosed. Connect holds it for
	// the whole attempt, so at most one attempt is in flight.
	mu      sync.Mutex
	current *attempt

	// pending holds callback invocations queued while mu is held, in the
	// order of the critical sections that queued them. One goroutine at a
	// time drains it after releasing mu, so observers never see an older
	// transition after a newer one.
	notifyMu sync.Mutex
	pending  []func()
	draining bool

	state atomic.Uint32

	sessions session.Cache

	dialer Dialer
	sink   Sink
	config Config
	logger *slog.Logger

	// Callbacks
	cbMu          sync.RWMutex
	onStateChange func(oldState, newState State)
	onAttempt     func(Attempt)
}

// NewManager creates a disconnected manager. Notifications from every session
// it opens are forwarded to sink.
func NewManager(dialer Dialer, sink Sink, config Config) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		dialer: dialer,
		sink:   sink,
		config: config,
		logger: logger,
	}
}

// State returns the current connection state. It does not block on an
// in-flight connect.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// IsClosed reports whether no handle currently exists.
func (m *Manager) IsClosed() bool {
	m.mu.Lock()
	defer m.unlock()
	return m.current == nil
}

// Conn returns the current handle, or nil.
func (m *Manager) Conn() Conn {
	m.mu.Lock()
	defer m.unlock()
	if m.current == nil {
		return nil
	}
	return m.current.conn
}

// Session returns the cached session without consuming it.
func (m *Manager) Session() (session.State, bool) {
	return m.sessions.Load()
}

// ConnectWait is Connect without a timeout.
func (m *Manager) ConnectWait(ctx context.Context) (Conn, error) {
	return m.Connect(ctx, 0)
}

// Connect returns the current handle, establishing a session first if none
// exists. A zero timeout waits until the session is established or ctx ends.
//
// Errors:
//   - ErrConnectionFailed: the collaborator could not create a handle, or the
//     session expired or was closed before it was established
//   - ErrTimeout: the session was not established within timeout
//   - ErrInterrupted: ctx ended while waiting (wraps ctx.Err())
//   - ErrCredentials: the configured credentials could not be attached
//
// Every failure after the handle was created tears the handle down.
func (m *Manager) Connect(ctx context.Context, timeout time.Duration) (Conn, error) {
	m.mu.Lock()
	defer m.unlock()

	if a := m.current; a != nil {
		switch {
		case a.isExpired():
			m.closeLocked("session expired")
		case a.isLost():
			m.detachLocked("connection lost")
		default:
			return a.conn, nil
		}
	}

	return m.connectLocked(ctx, timeout)
}

// Close closes the current handle, if any, and forgets the cached session.
// Close failures are logged and suppressed. Close is idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.unlock()
	m.closeLocked("closed")
}

// Detach drops the current handle but keeps the cached session, so the next
// Connect resumes it. Handles that cannot detach are closed instead, and the
// cache is cleared because their session ends with them.
func (m *Manager) Detach() {
	m.mu.Lock()
	defer m.unlock()
	m.detachLocked("detached")
}

// OnStateChange sets a callback for state changes.
// The callback is invoked outside the manager's lock, one transition at a
// time and in the order the transitions happened. A call that changed the
// state may return before its callback ran if another goroutine is already
// delivering callbacks.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onStateChange = fn
}

// OnAttempt sets a callback invoked after every dial with its outcome.
// The callback is invoked outside the manager's lock.
func (m *Manager) OnAttempt(fn func(Attempt)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.onAttempt = fn
}

func (m *Manager) connectLocked(ctx context.Context, timeout time.Duration) (Conn, error) {
	m.setStateLocked(StateConnecting)

	a := newAttempt()
	req := DialRequest{
		Servers:        m.config.Ensemble.Servers(),
		Namespace:      m.config.Ensemble.Namespace(),
		SessionTimeout: m.config.SessionTimeout,
		Callback:       m.router(a),
	}

	resume, resuming := m.sessions.Take()
	if resuming {
		req.Resume = &resume
		m.logger.Debug("resuming session", "session", resume.String())
	}

	start := time.Now()
	conn, err := m.dialer.Dial(ctx, req)
	if err != nil {
		m.setStateLocked(StateDisconnected)
		err = fmt.Errorf("%w: %s: %w", ErrConnectionFailed, m.config.Ensemble.ConnectString(), err)
		m.reportAttempt(Attempt{Resumed: resuming, Duration: time.Since(start), Err: err})
		return nil, err
	}

	a.conn = conn
	m.current = a

	if err := a.wait(ctx, timeout); err != nil {
		m.logger.Info("connect attempt failed", "error", err)
		m.closeLocked("connect attempt failed")
		m.reportAttempt(Attempt{Resumed: resuming, Duration: time.Since(start), Err: err})
		return nil, err
	}

	if creds := m.config.Credentials; creds != nil {
		if err := conn.AddAuth(creds.Scheme, creds.Token); err != nil {
			m.closeLocked("credentials rejected")
			err = fmt.Errorf("%w: scheme %q: %w", ErrCredentials, creds.Scheme, err)
			m.reportAttempt(Attempt{Resumed: resuming, Duration: time.Since(start), Err: err})
			return nil, err
		}
	}

	established := session.State{ID: conn.SessionID(), Password: conn.SessionPassword()}
	m.sessions.Store(established)
	m.setStateLocked(StateConnected)

	reused := resuming && resume.ID == established.ID
	m.logger.Info("session established",
		"session", established.String(),
		"resumed", reused,
		"servers", m.config.Ensemble.ConnectString())
	m.reportAttempt(Attempt{Resumed: resuming, Reused: reused, Session: established, Duration: time.Since(start)})

	return conn, nil
}

// closeLocked must be called with m.mu held.
func (m *Manager) closeLocked(reason string) {
	m.sessions.Clear()

	a := m.current
	if a == nil {
		return
	}
	m.current = nil

	if err := a.conn.Close(); err != nil {
		m.logger.Warn("failed to close connection", "reason", reason, "error", err)
	}
	m.setStateLocked(StateDisconnected)
	m.logger.Debug("connection closed", "reason", reason)
}

// detachLocked must be called with m.mu held.
func (m *Manager) detachLocked(reason string) {
	a := m.current
	if a == nil {
		return
	}

	d, ok := a.conn.(Detacher)
	if !ok {
		m.closeLocked(reason)
		return
	}

	m.current = nil
	if err := d.Detach(); err != nil {
		m.logger.Warn("failed to detach connection", "reason", reason, "error", err)
	}
	m.setStateLocked(StateDisconnected)
	m.logger.Debug("connection detached", "reason", reason)
}

// expire closes a's handle if it is still current.
// Runs on its own goroutine: the collaborator may report expiration while
// Connect holds m.mu.
func (m *Manager) expire(a *attempt) {
	m.mu.Lock()
	defer m.unlock()
	if m.current != a {
		return
	}
	m.logger.Info("session expired")
	m.closeLocked("session expired")
}

// lose detaches a's handle if it is still current.
func (m *Manager) lose(a *attempt) {
	m.mu.Lock()
	defer m.unlock()
	if m.current != a {
		return
	}
	m.logger.Info("connection lost")
	m.detachLocked("connection lost")
}

// setStateLocked must be called with m.mu held.
func (m *Manager) setStateLocked(s State) {
	old := State(m.state.Swap(uint32(s)))
	if old == s {
		return
	}
	m.cbMu.RLock()
	fn := m.onStateChange
	m.cbMu.RUnlock()
	if fn != nil {
		m.queue(func() { fn(old, s) })
	}
}

// queue must be called with m.mu held.
func (m *Manager) queue(fn func()) {
	m.notifyMu.Lock()
	m.pending = append(m.pending, fn)
	m.notifyMu.Unlock()
}

// unlock releases m.mu and then runs the queued callbacks. If another
// goroutine is already running them, it also runs the ones queued here.
func (m *Manager) unlock() {
	m.mu.Unlock()

	m.notifyMu.Lock()
	if m.draining {
		m.notifyMu.Unlock()
		return
	}
	m.draining = true
	for len(m.pending) > 0 {
		batch := m.pending
		m.pending = nil
		m.notifyMu.Unlock()

		for _, fn := range batch {
			fn()
		}

		m.notifyMu.Lock()
	}
	m.draining = false
	m.notifyMu.Unlock()
}

// reportAttempt must be called with m.mu held.
func (m *Manager) reportAttempt(at Attempt) {
	m.cbMu.RLock()
	fn := m.onAttempt
	m.cbMu.RUnlock()
	if fn != nil {
		m.queue(func() { fn(at) })
	}
}
