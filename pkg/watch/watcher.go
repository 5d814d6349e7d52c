package watch

import "github.com/keeper-client/keeper-go/pkg/event"

// Watcher receives notifications.
// Implementations are invoked from the dispatcher goroutine, one at a time.
type Watcher interface {
	Process(n event.Notification)
}

// Func is a persistent watcher backed by a callback.
type Func struct {
	fn func(event.Notification)
}

// NewFunc returns a watcher that calls fn for every notification.
func NewFunc(fn func(event.Notification)) *Func {
	return &Func{fn: fn}
}

// Process implements Watcher.
func (w *Func) Process(n event.Notification) {
	if w.fn != nil {
		w.fn(n)
	}
}

// Expiration is a watcher that fires only on session expiration.
type Expiration struct {
	onExpired func()
}

// NewExpiration returns a watcher that calls onExpired once for each
// {TypeNone, StateExpired} notification and ignores everything else.
func NewExpiration(onExpired func()) *Expiration {
	return &Expiration{onExpired: onExpired}
}

// Process implements Watcher.
func (w *Expiration) Process(n event.Notification) {
	if n.IsExpired() && w.onExpired != nil {
		w.onExpired()
	}
}

// Compile-time interface satisfaction checks.
var (
	_ Watcher = (*Func)(nil)
	_ Watcher = (*Expiration)(nil)
)
