// Package singleflight implements per-key call coalescing for idempotent work.
// It protects the system from redundant concurrent recomputation (Z-score
// recalculation per event) by dropping a duplicate request while one is
// already in flight for the same key. Dropped means dropped: callers are
// never queued, because the work is idempotent and the in-flight run will
// produce the same result.
// No external dependencies - uses only standard library.
package singleflight

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Common errors.
var (
	// ErrInFlight is returned when a call for the same key is already running.
	ErrInFlight = errors.New("singleflight: call already in flight for key")
)

// Group coalesces concurrent calls by key.
// The zero value is not usable; create one with New.
type Group struct {
	mu       sync.Mutex
	inFlight map[string]time.Time

	// onDrop is called when a duplicate request is dropped.
	onDrop func(key string)
}

// Option is a functional option for configuring the group.
type Option func(*Group)

// WithOnDrop sets a callback invoked when a duplicate request is dropped.
// Useful for logging or metrics.
func WithOnDrop(fn func(key string)) Option {
	return func(g *Group) {
		g.onDrop = fn
	}
}

// New creates a new Group.
func New(opts ...Option) *Group {
	g := &Group{
		inFlight: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do executes fn if no call for key is in flight, otherwise drops the request
// and returns ErrInFlight. The key is released when fn returns, even on panic.
func (g *Group) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if !g.tryAcquire(key) {
		if g.onDrop != nil {
			g.onDrop(key)
		}
		return ErrInFlight
	}
	defer g.release(key)

	return fn(ctx)
}

// TryAcquire marks key as in flight and returns true, or returns false if a
// call for key is already running. Callers that acquire must call Release.
// Exposed for flows where the protected section does not fit a closure
// (a distributed lock held across the same section, for example).
func (g *Group) TryAcquire(key string) bool {
	if !g.tryAcquire(key) {
		if g.onDrop != nil {
			g.onDrop(key)
		}
		return false
	}
	return true
}

// Release releases a key acquired with TryAcquire.
func (g *Group) Release(key string) {
	g.release(key)
}

// InFlight returns true if a call for key is currently running.
func (g *Group) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inFlight[key]
	return ok
}

// Len returns the number of keys currently in flight.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inFlight)
}

func (g *Group) tryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.inFlight[key]; ok {
		return false
	}
	g.inFlight[key] = time.Now()
	return true
}

func (g *Group) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, key)
}
