package ratelimit

import (
	"sync"
	"time"
)

// Result reports the outcome of a single Check call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter is a process-local fixed-window request limiter keyed by caller
// identity. Windows live in memory only; a restart clears all state.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	entries map[string]*entry
}

type entry struct {
	used    int
	resetAt time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter allowing at most limit calls per identity within
// each window.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one call for the identity and reports whether it is within
// the window's budget. The first call for an identity, or the first call
// after the window elapsed, starts a fresh window; stale windows are
// recreated rather than decremented.
func (l *Limiter) Check(identity string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[identity]
	if !ok || !now.Before(e.resetAt) {
		e = &entry{resetAt: now.Add(l.window)}
		l.entries[identity] = e
	}

	e.used++
	remaining := l.limit - e.used
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   e.used <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   e.resetAt,
	}
}

// Reset drops all windows, returning the limiter to its initial state.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*entry)
}
