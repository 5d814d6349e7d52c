// Package session caches the identity of the last established session so a
// later connect can resume it instead of starting over.
package session

import (
	"bytes"
	"fmt"
	"sync"
)

// State identifies a server-side session.
type State struct {
	ID       int64
	Password []byte
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	return State{ID: s.ID, Password: bytes.Clone(s.Password)}
}

// Equal reports whether s and o identify the same session.
func (s State) Equal(o State) bool {
	return s.ID == o.ID && bytes.Equal(s.Password, o.Password)
}

// String renders the session ID in the conventional hex form. The password is
// never printed.
func (s State) String() string {
	return fmt.Sprintf("0x%x", s.ID)
}

// Cache holds at most one resumable session.
// A cached state is handed out by Take at most once.
type Cache struct {
	mu    sync.Mutex
	state *State
}

// Store replaces the cached state with a copy of s.
func (c *Cache) Store(s State) {
	cp := s.Clone()
	c.mu.Lock()
	c.state = &cp
	c.mu.Unlock()
}

// Load returns a copy of the cached state without consuming it.
func (c *Cache) Load() (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return State{}, false
	}
	return c.state.Clone(), true
}

// Take returns the cached state and clears the cache.
func (c *Cache) Take() (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return State{}, false
	}
	s := *c.state
	c.state = nil
	return s, true
}

// Clear drops the cached state.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.state = nil
	c.mu.Unlock()
}

// Present reports whether a state is cached.
func (c *Cache) Present() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != nil
}
