package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/keeper-client/keeper-go/pkg/connection"
	"github.com/keeper-client/keeper-go/pkg/fault"
)

// DefaultMaxAttempts bounds Do when the policy leaves MaxAttempts unset.
const DefaultMaxAttempts = 5

// ErrExhausted is returned by Do when every attempt failed with a retryable
// error. It wraps the last failure.
var ErrExhausted = errors.New("retry attempts exhausted")

// Connector hands out connections and classifies operation failures.
// client.Client implements it.
type Connector interface {
	Connect(ctx context.Context) (connection.Conn, error)
	ShouldRetry(err error) bool
}

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `yaml:"max_attempts" toml:"max_attempts"`

	// Backoff shapes the delay between attempts.
	Backoff BackoffConfig `yaml:"backoff" toml:"backoff"`

	// OnRetry, if set, is called before sleeping ahead of attempt+1.
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-" toml:"-"`
}

// DefaultPolicy returns a policy with the default bounds.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     BackoffConfig{Jitter: JitterFactor},
	}
}

// Op is an operation run against an established connection.
type Op func(ctx context.Context, conn connection.Conn) error

// Do runs op until it succeeds, fails with an error that is not worth
// retrying, ctx ends or the policy's attempts are used up.
//
// Each attempt obtains its connection from c, so an attempt following a
// session expiry runs on a new session. Connect failures that may be
// transient (ErrConnectionFailed, ErrTimeout) are retried. Rejected
// credentials, authentication failures and interruption are not.
func Do(ctx context.Context, c Connector, policy Policy, op Op) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	backoff := NewBackoffWithConfig(policy.Backoff)

	var last error
	for attempt := 1; ; attempt++ {
		last = once(ctx, c, op)
		if last == nil {
			return nil
		}
		if !retryable(c, last) {
			return last
		}
		if attempt >= attempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, last)
		}

		delay := backoff.Next()
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, last, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ctx.Err(), last)
		}
	}
}

func once(ctx context.Context, c Connector, op Op) error {
	conn, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	return op(ctx, conn)
}

func retryable(c Connector, err error) bool {
	switch {
	case errors.Is(err, connection.ErrCredentials),
		errors.Is(err, connection.ErrInterrupted),
		errors.Is(err, fault.ErrAuthFailed):
		return false
	case errors.Is(err, connection.ErrConnectionFailed), errors.Is(err, connection.ErrTimeout):
		return true
	}
	return c.ShouldRetry(err)
}
