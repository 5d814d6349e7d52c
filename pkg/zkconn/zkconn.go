package zkconn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path"
	"sync/atomic"
	"time"

	"github.com/go-zookeeper/zk"

	"github.com/keeper-client/keeper-go/pkg/connection"
)

// ErrNoServers is returned by Dial when the request lists no servers.
var ErrNoServers = errors.New("no servers")

// Config configures a Dialer.
type Config struct {
	// Logger receives the library's log output at debug level.
	// If nil, library logging is disabled.
	Logger *slog.Logger

	// NetDialer replaces the library's TCP dialer. Optional.
	NetDialer zk.Dialer
}

// handle is the subset of *zk.Conn used by Conn.
type handle interface {
	AddAuth(scheme string, auth []byte) error
	Close()
	SessionID() int64
}

type connectFunc func(servers []string, timeout time.Duration, cb zk.EventCallback) (handle, *zk.Conn, error)

// Dialer opens sessions with the go-zookeeper client.
type Dialer struct {
	config  Config
	logger  *slog.Logger
	connect connectFunc
}

// NewDialer creates a Dialer.
func NewDialer(config Config) *Dialer {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := &Dialer{config: config, logger: logger}
	d.connect = d.zkConnect
	return d
}

func (d *Dialer) zkConnect(servers []string, timeout time.Duration, cb zk.EventCallback) (handle, *zk.Conn, error) {
	netDialer := d.config.NetDialer
	if netDialer == nil {
		netDialer = net.DialTimeout
	}
	conn, events, err := zk.Connect(servers, timeout,
		zk.WithEventCallback(cb),
		zk.WithLogger(printfLogger{d.logger}),
		zk.WithDialer(netDialer))
	if err != nil {
		return nil, nil, err
	}
	go drain(events)
	return conn, conn, nil
}

// Dial implements connection.Dialer. The library connects in the
// background; the session is established when req.Callback observes
// event.StateConnected.
func (d *Dialer) Dial(ctx context.Context, req connection.DialRequest) (connection.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Servers) == 0 {
		return nil, ErrNoServers
	}
	if req.Resume != nil {
		d.logger.Debug("session resumption handled by the library, starting new session",
			"session", req.Resume.String())
	}

	c := &Conn{namespace: req.Namespace}
	cb := func(ev zk.Event) {
		if c.released.Load() {
			return
		}
		n, ok := ToNotification(ev)
		if !ok {
			return
		}
		if req.Callback != nil {
			req.Callback(n)
		}
	}

	h, raw, err := d.connect(req.Servers, req.SessionTimeout, cb)
	if err != nil {
		return nil, fmt.Errorf("zk connect: %w", Fault(err, ""))
	}
	c.handle = h
	c.raw = raw
	return c, nil
}

// Conn is a session handle backed by *zk.Conn.
type Conn struct {
	handle    handle
	raw       *zk.Conn
	namespace string
	released  atomic.Bool
}

// SessionID implements connection.Conn.
func (c *Conn) SessionID() int64 {
	return c.handle.SessionID()
}

// SessionPassword implements connection.Conn. The library does not expose
// the password, so it is always empty.
func (c *Conn) SessionPassword() []byte {
	return nil
}

// AddAuth implements connection.Conn.
func (c *Conn) AddAuth(scheme string, token []byte) error {
	return Fault(c.handle.AddAuth(scheme, token), "")
}

// Close implements connection.Conn. Notifications raised while the library
// shuts down are not forwarded.
func (c *Conn) Close() error {
	if c.released.Swap(true) {
		return nil
	}
	c.handle.Close()
	return nil
}

// Raw returns the underlying library connection for node operations.
func (c *Conn) Raw() *zk.Conn {
	return c.raw
}

// Path scopes p to the session's namespace.
func (c *Conn) Path(p string) string {
	if c.namespace == "" {
		return p
	}
	return path.Join(c.namespace, p)
}

// drain consumes the library's event channel; events are delivered through
// the callback.
func drain(events <-chan zk.Event) {
	for range events {
	}
}

// printfLogger adapts slog to the library's Printf logger.
type printfLogger struct {
	logger *slog.Logger
}

func (l printfLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...), "component", "zk")
}

var _ connection.Dialer = (*Dialer)(nil)
var _ connection.Conn = (*Conn)(nil)
