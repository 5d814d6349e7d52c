package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keeper-client/keeper-go/pkg/connection"
	"github.com/keeper-client/keeper-go/pkg/dispatch"
	"github.com/keeper-client/keeper-go/pkg/ensemble"
	"github.com/keeper-client/keeper-go/pkg/event"
	"github.com/keeper-client/keeper-go/pkg/log"
	"github.com/keeper-client/keeper-go/pkg/metrics"
	"github.com/keeper-client/keeper-go/pkg/retry"
	"github.com/keeper-client/keeper-go/pkg/session"
	"github.com/keeper-client/keeper-go/pkg/watch"
)

// Client is a resilient handle on a coordination-service ensemble.
//
// It owns at most one session handle at a time, reconnects lazily on
// Connect, resumes the previous session where possible and routes every
// notification to the registered watchers on a single dispatch goroutine.
// Client is safe for concurrent use.
type Client struct {
	id       uuid.UUID
	config   Config
	ensemble *ensemble.Ensemble

	registry   *watch.Registry
	dispatcher *dispatch.Dispatcher
	manager    *connection.Manager
	classifier *retry.Classifier

	logger  *slog.Logger
	metrics *metrics.Collector
	trace   log.Logger
	file    *log.FileLogger

	shutdownOnce sync.Once
}

// New creates a disconnected client that opens sessions through dialer.
// The dispatch goroutine starts immediately and runs until Shutdown.
func New(dialer connection.Dialer, config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ens, err := config.ensemble()
	if err != nil {
		return nil, err
	}

	c := &Client{
		id:       uuid.New(),
		config:   config,
		ensemble: ens,
		registry: watch.NewRegistry(),
		logger:   config.Logger,
		metrics:  config.Metrics,
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	c.logger = c.logger.With("client", c.id.String())

	if err := c.openTrace(); err != nil {
		return nil, err
	}

	c.registry.OnChange(c.metrics.SetWatchers)
	c.dispatcher = dispatch.New(c.registry, dispatch.Config{
		Logger: c.logger,
		OnDelivered: func(n event.Notification, _ int) {
			c.metrics.RecordDelivered(n)
		},
		OnPanic:      c.watcherPanicked,
		OnQueueDepth: c.metrics.SetQueueDepth,
	})

	var creds *connection.Credentials
	if config.Credentials != nil {
		creds = &connection.Credentials{
			Scheme: config.Credentials.Scheme,
			Token:  []byte(config.Credentials.Token),
		}
	}
	c.manager = connection.NewManager(dialer, connection.SinkFunc(c.route), connection.Config{
		Ensemble:       ens,
		SessionTimeout: config.SessionTimeout,
		Credentials:    creds,
		Logger:         c.logger,
	})
	c.manager.OnStateChange(c.stateChanged)
	c.manager.OnAttempt(c.attempted)

	c.classifier = retry.NewClassifier(c.manager, retry.ClassifierConfig{
		Logger:     c.logger,
		OnDecision: c.decided,
	})

	return c, nil
}

func (c *Client) openTrace() error {
	var loggers []log.Logger
	if c.config.Trace != nil {
		loggers = append(loggers, c.config.Trace)
	}
	if c.config.TraceFile != "" {
		f, err := log.NewFileLogger(c.config.TraceFile)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		c.file = f
		loggers = append(loggers, f)
	}

	switch len(loggers) {
	case 0:
		c.trace = log.NoopLogger{}
	case 1:
		c.trace = loggers[0]
	default:
		c.trace = log.NewMultiLogger(loggers...)
	}
	return nil
}

// ID returns the client instance ID carried by its trace events.
func (c *Client) ID() string {
	return c.id.String()
}

// Ensemble returns the validated ensemble descriptor.
func (c *Client) Ensemble() *ensemble.Ensemble {
	return c.ensemble
}

// State returns the connection state.
func (c *Client) State() connection.State {
	return c.manager.State()
}

// Connect returns the current session handle, establishing a session first
// if none exists. The wait is bounded by the configured ConnectTimeout.
func (c *Client) Connect(ctx context.Context) (connection.Conn, error) {
	return c.manager.Connect(ctx, c.config.ConnectTimeout)
}

// ConnectTimeout is Connect with an explicit bound. Zero waits without bound.
func (c *Client) ConnectTimeout(ctx context.Context, timeout time.Duration) (connection.Conn, error) {
	return c.manager.Connect(ctx, timeout)
}

// Close closes the current session, if any. The next Connect starts a new
// session. Registered watchers stay registered.
func (c *Client) Close() {
	c.manager.Close()
}

// Detach drops the current handle but keeps its session, so the next Connect
// resumes it.
func (c *Client) Detach() {
	c.manager.Detach()
}

// IsClosed reports whether no session handle currently exists.
func (c *Client) IsClosed() bool {
	return c.manager.IsClosed()
}

// Session returns the cached session, if any. The password is a copy.
func (c *Client) Session() (session.State, bool) {
	return c.manager.Session()
}

// Register adds a persistent watcher. It receives every notification,
// including session events, across reconnects.
func (c *Client) Register(w watch.Watcher) error {
	return c.registry.Register(w)
}

// Unregister removes w and reports whether it was registered.
func (c *Client) Unregister(w watch.Watcher) bool {
	return c.registry.Unregister(w)
}

// RegisterExpirationHandler registers a watcher that calls onExpired for
// each session expiration. The returned watcher can be passed to Unregister.
func (c *Client) RegisterExpirationHandler(onExpired func()) (watch.Watcher, error) {
	w := watch.NewExpiration(onExpired)
	if err := c.registry.Register(w); err != nil {
		return nil, err
	}
	return w, nil
}

// ShouldRetry reports whether an operation that failed with err may be
// retried. An expired session is closed first.
func (c *Client) ShouldRetry(err error) bool {
	return c.classifier.ShouldRetry(err)
}

// Do runs op with retries under policy. A zero policy uses the configured
// retry policy.
func (c *Client) Do(ctx context.Context, policy retry.Policy, op retry.Op) error {
	if policy.MaxAttempts == 0 && policy.Backoff == (retry.BackoffConfig{}) && policy.OnRetry == nil {
		policy = c.config.Retry
	}
	return retry.Do(ctx, c, policy, op)
}

// Flush waits until every notification received so far was delivered.
func (c *Client) Flush(ctx context.Context) error {
	return c.dispatcher.Flush(ctx)
}

// Shutdown closes the session, stops the dispatch goroutine and closes the
// trace file. Undelivered notifications are dropped. The client cannot be
// used afterwards.
func (c *Client) Shutdown() error {
	var err error
	c.shutdownOnce.Do(func() {
		c.manager.Close()
		c.dispatcher.Stop()
		if c.file != nil {
			err = c.file.Close()
		}
	})
	return err
}

var _ retry.Connector = (*Client)(nil)
