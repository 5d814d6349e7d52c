package watch

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
)

// Registry errors.
var (
	ErrNilWatcher          = errors.New("watch: nil watcher")
	ErrUncomparableWatcher = errors.New("watch: watcher is not comparable")
)

// Registry is a copy-on-write set of watchers.
// Readers take lock-free snapshots; writers serialize on a mutex and publish
// a new snapshot atomically.
type Registry struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[[]Watcher]

	onChange func(size int)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	empty := []Watcher{}
	r.snapshot.Store(&empty)
	return r
}

// OnChange sets a callback invoked with the new size after every change.
// Intended for metrics.
func (r *Registry) OnChange(fn func(size int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// Register adds w to the set. Registering a watcher twice has no effect.
func (r *Registry) Register(w Watcher) error {
	if w == nil {
		return ErrNilWatcher
	}
	if !isComparable(w) {
		return ErrUncomparableWatcher
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := *r.snapshot.Load()
	for _, existing := range cur {
		if existing == w {
			return nil
		}
	}

	next := make([]Watcher, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, w)
	r.publish(next)
	return nil
}

// Unregister removes w and reports whether it was registered.
func (r *Registry) Unregister(w Watcher) bool {
	if w == nil || !isComparable(w) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := *r.snapshot.Load()
	for i, existing := range cur {
		if existing != w {
			continue
		}
		next := make([]Watcher, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		next = append(next, cur[i+1:]...)
		r.publish(next)
		return true
	}
	return false
}

// Watchers returns the current set. The returned slice must not be modified.
func (r *Registry) Watchers() []Watcher {
	return *r.snapshot.Load()
}

// Len returns the number of registered watchers.
func (r *Registry) Len() int {
	return len(*r.snapshot.Load())
}

// isComparable reports whether w can be compared with ==. A struct watcher
// whose interface field holds a func passes a type check but panics on ==,
// so the dynamic value is inspected.
func isComparable(w Watcher) bool {
	return reflect.ValueOf(w).Comparable()
}

// publish must be called with r.mu held.
func (r *Registry) publish(next []Watcher) {
	r.snapshot.Store(&next)
	if r.onChange != nil {
		r.onChange(len(next))
	}
}
