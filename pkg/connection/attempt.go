package connection

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keeper-client/keeper-go/pkg/event"
	"github.com/keeper-client/keeper-go/pkg/fault"
)

// attempt is the one-shot connect watcher for a single handle. It turns the
// session-level notifications of that handle into signals for Connect and
// for the manager.
type attempt struct {
	conn Conn

	connected     chan struct{}
	connectedOnce sync.Once

	expired     chan struct{}
	expiredOnce sync.Once

	lost     chan struct{}
	lostOnce sync.Once

	authFailed     chan struct{}
	authFailedOnce sync.Once

	expiredFlag atomic.Bool
	lostFlag    atomic.Bool
}

func newAttempt() *attempt {
	return &attempt{
		connected:  make(chan struct{}),
		expired:    make(chan struct{}),
		lost:       make(chan struct{}),
		authFailed: make(chan struct{}),
	}
}

func (a *attempt) isExpired() bool { return a.expiredFlag.Load() }
func (a *attempt) isLost() bool    { return a.lostFlag.Load() }

// router returns the collaborator callback for a. Every notification is
// forwarded to the sink regardless of its category.
func (m *Manager) router(a *attempt) event.Callback {
	return func(n event.Notification) {
		if n.IsSession() {
			switch n.State {
			case event.StateConnected, event.StateConnectedReadOnly:
				a.connectedOnce.Do(func() { close(a.connected) })

			case event.StateExpired:
				a.expiredFlag.Store(true)
				a.expiredOnce.Do(func() {
					close(a.expired)
					go m.expire(a)
				})

			case event.StateClosed:
				a.lostFlag.Store(true)
				a.lostOnce.Do(func() {
					close(a.lost)
					go m.lose(a)
				})

			case event.StateAuthFailed:
				a.authFailedOnce.Do(func() { close(a.authFailed) })
			}
		}

		if err := m.sink.Enqueue(n); err != nil {
			m.logger.Debug("notification dropped", "notification", n.String(), "error", err)
		}
	}
}

// wait blocks until the session is established, fails, times out or ctx ends.
// A zero timeout waits without bound.
func (a *attempt) wait(ctx context.Context, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-a.connected:
		return nil
	case <-a.expired:
		return fmt.Errorf("%w: %w", ErrConnectionFailed, fault.ErrSessionExpired)
	case <-a.lost:
		return fmt.Errorf("%w: %w", ErrConnectionFailed, fault.ErrConnectionLoss)
	case <-a.authFailed:
		return fmt.Errorf("%w: %w", ErrConnectionFailed, fault.ErrAuthFailed)
	case <-deadline:
		return fmt.Errorf("%w after %s", ErrTimeout, timeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrInterrupted, ctx.Err())
	}
}
