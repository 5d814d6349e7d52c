package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeper-client/keeper-go/pkg/connection"
	"github.com/keeper-client/keeper-go/pkg/connection/mocks"
	"github.com/keeper-client/keeper-go/pkg/fault"
	"github.com/keeper-client/keeper-go/pkg/retry"
)

type fakeConnector struct {
	conn       connection.Conn
	connectErr []error
	connects   int
	classifier *retry.Classifier
}

func (f *fakeConnector) Connect(context.Context) (connection.Conn, error) {
	f.connects++
	if len(f.connectErr) > 0 {
		err := f.connectErr[0]
		f.connectErr = f.connectErr[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.conn, nil
}

func (f *fakeConnector) ShouldRetry(err error) bool {
	return f.classifier.ShouldRetry(err)
}

func newConnector(t *testing.T) *fakeConnector {
	return &fakeConnector{
		conn:       mocks.NewMockConn(t),
		classifier: retry.NewClassifier(retry.CloserFunc(func() {}), retry.ClassifierConfig{}),
	}
}

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: attempts,
		Backoff:     retry.BackoffConfig{Initial: time.Millisecond, Max: 2 * time.Millisecond},
	}
}

func TestDoSucceedsAfterRetryableFaults(t *testing.T) {
	c := newConnector(t)
	calls := 0
	var retried []int

	policy := fastPolicy(5)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		retried = append(retried, attempt)
		assert.ErrorIs(t, err, fault.ErrConnectionLoss)
		assert.Positive(t, delay)
	}

	err := retry.Do(context.Background(), c, policy, func(_ context.Context, conn connection.Conn) error {
		calls++
		assert.Same(t, c.conn, conn)
		if calls < 3 {
			return fault.ErrConnectionLoss
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, c.connects)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoStopsOnPermanentFault(t *testing.T) {
	c := newConnector(t)
	calls := 0

	err := retry.Do(context.Background(), c, fastPolicy(5), func(context.Context, connection.Conn) error {
		calls++
		return fault.New(fault.CodeNoNode, "/missing")
	})

	assert.ErrorIs(t, err, fault.ErrNoNode)
	assert.NotErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestDoExhausted(t *testing.T) {
	c := newConnector(t)
	calls := 0

	err := retry.Do(context.Background(), c, fastPolicy(3), func(context.Context, connection.Conn) error {
		calls++
		return fault.ErrOperationTimeout
	})

	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.ErrorIs(t, err, fault.ErrOperationTimeout)
	assert.Equal(t, 3, calls)
}

func TestDoRetriesTransientConnectFailures(t *testing.T) {
	c := newConnector(t)
	c.connectErr = []error{connection.ErrTimeout, connection.ErrConnectionFailed}

	err := retry.Do(context.Background(), c, fastPolicy(5), func(context.Context, connection.Conn) error {
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, c.connects)
}

func TestDoDoesNotRetryPermanentConnectFailures(t *testing.T) {
	tests := []error{
		connection.ErrCredentials,
		connection.ErrInterrupted,
		errors.Join(connection.ErrConnectionFailed, fault.ErrAuthFailed),
	}

	for _, connectErr := range tests {
		t.Run(connectErr.Error(), func(t *testing.T) {
			c := newConnector(t)
			c.connectErr = []error{connectErr}

			err := retry.Do(context.Background(), c, fastPolicy(5), func(context.Context, connection.Conn) error {
				t.Fatal("op must not run")
				return nil
			})

			assert.ErrorIs(t, err, connectErr)
			assert.Equal(t, 1, c.connects)
		})
	}
}

func TestDoHonorsContext(t *testing.T) {
	c := newConnector(t)
	ctx, cancel := context.WithCancel(context.Background())

	policy := retry.Policy{MaxAttempts: 10, Backoff: retry.BackoffConfig{Initial: time.Hour}}
	policy.OnRetry = func(int, error, time.Duration) { cancel() }

	err := retry.Do(ctx, c, policy, func(context.Context, connection.Conn) error {
		return fault.ErrConnectionLoss
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, fault.ErrConnectionLoss)
}

func TestDefaultPolicy(t *testing.T) {
	p := retry.DefaultPolicy()
	assert.Equal(t, retry.DefaultMaxAttempts, p.MaxAttempts)
	assert.Equal(t, retry.JitterFactor, p.Backoff.Jitter)
}
