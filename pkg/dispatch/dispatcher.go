package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/keeper-client/keeper-go/pkg/event"
	"github.com/keeper-client/keeper-go/pkg/watch"
)

// ErrStopped is returned when enqueueing into a stopped dispatcher.
var ErrStopped = errors.New("dispatch: dispatcher stopped")

// Source supplies the watchers to deliver to.
// Watchers is called once per notification, at processing time.
type Source interface {
	Watchers() []watch.Watcher
}

// Config configures a Dispatcher. All fields are optional.
type Config struct {
	// Logger receives watcher failures. If nil, logging is disabled.
	Logger *slog.Logger

	// OnDelivered is called after a notification was handed to every watcher.
	OnDelivered func(n event.Notification, watchers int)

	// OnPanic is called when a watcher panics.
	OnPanic func(w watch.Watcher, n event.Notification, recovered any)

	// OnQueueDepth is called with the queue length after every change.
	OnQueueDepth func(depth int)
}

// item is a queued notification or a flush barrier.
type item struct {
	n       event.Notification
	barrier chan struct{}
}

// Dispatcher fans notifications out to watchers on a single goroutine.
type Dispatcher struct {
	source Source
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	queue   []item
	stopped bool

	wake chan struct{}
	done chan struct{}
	exit chan struct{}

	stopOnce sync.Once
}

// New creates a dispatcher and starts its worker.
func New(source Source, config Config) *Dispatcher {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := &Dispatcher{
		source: source,
		config: config,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		exit:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue appends n to the queue. It never blocks.
func (d *Dispatcher) Enqueue(n event.Notification) error {
	return d.push(item{n: n})
}

// Pending returns the number of queued notifications.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Flush waits until everything enqueued before the call has been delivered.
func (d *Dispatcher) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if err := d.push(item{barrier: barrier}); err != nil {
		return err
	}
	select {
	case <-barrier:
		return nil
	case <-d.exit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop terminates the worker and waits for it to exit.
// A delivery in progress completes first. Stop is idempotent.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.queue = nil
		d.mu.Unlock()
		close(d.done)
	})
	<-d.exit
}

func (d *Dispatcher) push(it item) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrStopped
	}
	d.queue = append(d.queue, it)
	d.reportDepth(len(d.queue))
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
		// Already signalled
	}
	return nil
}

// next blocks until an item is available or the dispatcher stops.
func (d *Dispatcher) next() (item, bool) {
	for {
		d.mu.Lock()
		if d.stopped {
			d.mu.Unlock()
			return item{}, false
		}
		if len(d.queue) > 0 {
			it := d.queue[0]
			d.queue[0] = item{}
			d.queue = d.queue[1:]
			if len(d.queue) == 0 {
				d.queue = nil
			}
			d.reportDepth(len(d.queue))
			d.mu.Unlock()
			return it, true
		}
		d.mu.Unlock()

		select {
		case <-d.wake:
		case <-d.done:
			return item{}, false
		}
	}
}

func (d *Dispatcher) run() {
	defer close(d.exit)

	for {
		it, ok := d.next()
		if !ok {
			return
		}
		if it.barrier != nil {
			close(it.barrier)
			continue
		}
		d.deliver(it.n)
	}
}

func (d *Dispatcher) deliver(n event.Notification) {
	watchers := d.source.Watchers()
	for _, w := range watchers {
		d.invoke(w, n)
	}
	if d.config.OnDelivered != nil {
		d.config.OnDelivered(n, len(watchers))
	}
}

// invoke calls a single watcher, recovering from panics.
func (d *Dispatcher) invoke(w watch.Watcher, n event.Notification) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("watcher panicked",
				"notification", n.String(),
				"panic", r)
			if d.config.OnPanic != nil {
				d.config.OnPanic(w, n, r)
			}
		}
	}()
	w.Process(n)
}

// reportDepth must be called with d.mu held.
func (d *Dispatcher) reportDepth(depth int) {
	if d.config.OnQueueDepth != nil {
		d.config.OnQueueDepth(depth)
	}
}
