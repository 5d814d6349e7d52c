package retry

import (
	"log/slog"

	"github.com/keeper-client/keeper-go/pkg/fault"
)

// Closer closes the current connection. The connection manager implements it.
type Closer interface {
	Close()
}

// Decision records one classification.
type Decision struct {
	// Err is the classified error.
	Err error

	// Code is the fault code of Err. Valid only if Fault is true.
	Code fault.Code

	// Fault is true if Err carries a fault code.
	Fault bool

	// Retry is the verdict.
	Retry bool

	// Closed is true if the classification closed the connection.
	Closed bool
}

// ClassifierConfig configures a Classifier.
type ClassifierConfig struct {
	// Logger is the optional logger. If nil, logging is disabled.
	Logger *slog.Logger

	// OnDecision, if set, is called after every classification.
	OnDecision func(Decision)
}

// Classifier decides whether failed operations are worth retrying.
type Classifier struct {
	closer     Closer
	logger     *slog.Logger
	onDecision func(Decision)
}

// NewClassifier creates a classifier that closes closer on session expiry.
func NewClassifier(closer Closer, config ClassifierConfig) *Classifier {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Classifier{
		closer:     closer,
		logger:     logger,
		onDecision: config.OnDecision,
	}
}

// ShouldRetry reports whether the operation that failed with err may be
// retried. If err reports an expired session the connection is closed first,
// whatever the verdict, so that the next connect creates a new session.
//
// Only ConnectionLoss, OperationTimeout, SessionExpired and SessionMoved are
// retryable. Errors carrying no fault code are not.
func (c *Classifier) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	d := Decision{Err: err}
	d.Code, d.Fault = fault.CodeOf(err)

	if fault.IsSessionExpired(err) {
		c.logger.Info("session expired, closing connection", "error", err)
		c.closer.Close()
		d.Closed = true
	}

	d.Retry = fault.IsRetryable(err)
	c.logger.Debug("retry decision", "fault", d.Fault, "code", d.Code.String(), "retry", d.Retry)

	if c.onDecision != nil {
		c.onDecision(d)
	}
	return d.Retry
}

// CloserFunc adapts a function to Closer.
type CloserFunc func()

// Close implements Closer.
func (f CloserFunc) Close() { f() }
