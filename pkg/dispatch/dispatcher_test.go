package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeper-client/keeper-go/pkg/event"
	"github.com/keeper-client/keeper-go/pkg/watch"
)

// recorder is a watcher that records what it receives.
type recorder struct {
	mu   sync.Mutex
	seen []event.Notification
}

func (r *recorder) Process(n event.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
}

func (r *recorder) got() []event.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Notification, len(r.seen))
	copy(out, r.seen)
	return out
}

type panicker struct{}

func (*panicker) Process(event.Notification) { panic("watcher failure") }

func flush(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Flush(ctx))
}

func node(path string) event.Notification {
	return event.Notification{Type: event.TypeNodeDataChanged, State: event.StateConnected, Path: path}
}

func TestDispatcherDeliversInOrderExactlyOnce(t *testing.T) {
	reg := watch.NewRegistry()
	w := &recorder{}
	require.NoError(t, reg.Register(w))

	d := New(reg, Config{})
	defer d.Stop()

	e1, e2, e3 := node("/e1"), node("/e2"), node("/e3")
	require.NoError(t, d.Enqueue(e1))
	require.NoError(t, d.Enqueue(e2))
	require.NoError(t, d.Enqueue(e3))
	flush(t, d)

	assert.Equal(t, []event.Notification{e1, e2, e3}, w.got())
}

func TestDispatcherUnregisterStopsDelivery(t *testing.T) {
	reg := watch.NewRegistry()
	w := &recorder{}
	require.NoError(t, reg.Register(w))

	d := New(reg, Config{})
	defer d.Stop()

	require.NoError(t, d.Enqueue(node("/before")))
	flush(t, d)

	require.True(t, reg.Unregister(w))
	require.NoError(t, d.Enqueue(node("/after")))
	flush(t, d)

	assert.Equal(t, []event.Notification{node("/before")}, w.got())
}

func TestDispatcherUnregisterDuringDelivery(t *testing.T) {
	reg := watch.NewRegistry()
	b := &recorder{}
	var removed bool
	a := watch.NewFunc(func(event.Notification) {
		if !removed {
			removed = reg.Unregister(b)
		}
	})
	require.NoError(t, reg.Register(a))
	require.NoError(t, reg.Register(b))

	d := New(reg, Config{})
	defer d.Stop()

	first, second := node("/first"), node("/second")
	require.NoError(t, d.Enqueue(first))
	flush(t, d)
	require.NoError(t, d.Enqueue(second))
	flush(t, d)

	assert.True(t, removed)
	assert.Equal(t, []event.Notification{first}, b.got(), "removal applies from the next notification")
	assert.Equal(t, 1, reg.Len())
}

func TestDispatcherIsolatesPanickingWatcher(t *testing.T) {
	reg := watch.NewRegistry()
	bad := &panicker{}
	good := &recorder{}
	require.NoError(t, reg.Register(bad))
	require.NoError(t, reg.Register(good))

	var mu sync.Mutex
	var panics []any
	d := New(reg, Config{
		OnPanic: func(w watch.Watcher, n event.Notification, r any) {
			mu.Lock()
			defer mu.Unlock()
			assert.Same(t, bad, w)
			panics = append(panics, r)
		},
	})
	defer d.Stop()

	require.NoError(t, d.Enqueue(node("/a")))
	require.NoError(t, d.Enqueue(node("/b")))
	flush(t, d)

	assert.Equal(t, []event.Notification{node("/a"), node("/b")}, good.got())
	mu.Lock()
	assert.Len(t, panics, 2)
	mu.Unlock()
}

func TestDispatcherEnqueueDoesNotBlockOnSlowWatcher(t *testing.T) {
	reg := watch.NewRegistry()
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	require.NoError(t, reg.Register(watch.NewFunc(func(event.Notification) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})))

	d := New(reg, Config{})
	defer d.Stop()

	require.NoError(t, d.Enqueue(node("/slow")))
	<-started

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_ = d.Enqueue(node("/queued"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked behind a slow watcher")
	}
	assert.Equal(t, 100, d.Pending())

	close(release)
	flush(t, d)
	assert.Equal(t, 0, d.Pending())
}

func TestDispatcherHooks(t *testing.T) {
	reg := watch.NewRegistry()
	require.NoError(t, reg.Register(&recorder{}))
	require.NoError(t, reg.Register(&recorder{}))

	var mu sync.Mutex
	delivered := map[string]int{}
	d := New(reg, Config{
		OnDelivered: func(n event.Notification, watchers int) {
			mu.Lock()
			defer mu.Unlock()
			delivered[n.Path] = watchers
		},
	})
	defer d.Stop()

	require.NoError(t, d.Enqueue(node("/x")))
	flush(t, d)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"/x": 2}, delivered)
}

func TestDispatcherStop(t *testing.T) {
	d := New(watch.NewRegistry(), Config{})
	d.Stop()
	d.Stop()

	assert.ErrorIs(t, d.Enqueue(node("/late")), ErrStopped)
	assert.ErrorIs(t, d.Flush(context.Background()), ErrStopped)
}

func TestDispatcherConcurrentProducers(t *testing.T) {
	reg := watch.NewRegistry()
	w := &recorder{}
	require.NoError(t, reg.Register(w))

	d := New(reg, Config{})
	defer d.Stop()

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_ = d.Enqueue(node("/p"))
			}
		}()
	}
	wg.Wait()
	flush(t, d)

	assert.Len(t, w.got(), 200)
}
