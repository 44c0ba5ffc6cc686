// Package session keeps one cart per shopping session.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront-service/internal/cart"
)

// Clock abstracts time for idle tracking.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type entry struct {
	cart     *cart.Store
	lastSeen time.Time
}

// Registry maps session IDs to carts. It is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	clock    Clock
}

// NewRegistry returns an empty registry. A nil clock uses wall time.
func NewRegistry(clock Clock) *Registry {
	if clock == nil {
		clock = realClock{}
	}
	return &Registry{sessions: make(map[string]*entry), clock: clock}
}

// Get returns the cart for id. When id is empty or unknown a new session is
// started and its ID returned; created reports whether that happened.
func (r *Registry) Get(id string) (c *cart.Store, sessionID string, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if e, ok := r.sessions[id]; ok && id != "" {
		e.lastSeen = now
		return e.cart, id, false
	}
	sessionID = uuid.NewString()
	e := &entry{cart: cart.NewStore(), lastSeen: now}
	r.sessions[sessionID] = e
	return e.cart, sessionID, true
}

// Lookup returns the cart for an existing session without creating one.
func (r *Registry) Lookup(id string) (*cart.Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.clock.Now()
	return e.cart, true
}

// End discards a session and its cart.
func (r *Registry) End(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Sweep ends every session idle for longer than maxIdle and reports how
// many were removed.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.clock.Now().Add(-maxIdle)
	removed := 0
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Len is the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
