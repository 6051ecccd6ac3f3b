// Package ratelimit provides the process-wide admission gate: a fixed-window
// request counter, not a sliding or token-bucket smoother. Bursts at window
// boundaries are accepted behavior, not a defect.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// DefaultWindow is the admission window length.
const DefaultWindow = 60 * time.Second

// Config configures a Limiter.
type Config struct {
	// Limit is the number of requests admitted per window.
	Limit int

	// Window overrides the window length. Zero means DefaultWindow.
	Window time.Duration

	// Disabled turns the limiter into a pass-through.
	Disabled bool
}

// Limiter is the only shared mutable state in the request path. One mutex
// guards the whole check-and-increment; it is never held across I/O.
type Limiter struct {
	mu          sync.Mutex
	limit       int
	window      time.Duration
	windowStart time.Time
	count       int
	disabled    bool
}

// Snapshot is a point-in-time view of the current window, used for the
// Retry-After header and health output.
type Snapshot struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// New creates a Limiter.
func New(cfg Config) (*Limiter, error) {
	if cfg.Limit <= 0 && !cfg.Disabled {
		return nil, errors.New("rate limit must be positive")
	}
	window := cfg.Window
	if window == 0 {
		window = DefaultWindow
	}
	return &Limiter{
		limit:       cfg.Limit,
		window:      window,
		windowStart: time.Now(),
		disabled:    cfg.Disabled,
	}, nil
}

// Admit performs the admission check. When the current time has advanced
// past the window's end the counter resets; while under the limit the
// counter increments and the request is admitted; otherwise the request is
// rejected without further mutation. Safe under concurrent calls.
func (l *Limiter) Admit() bool {
	if l.disabled {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}

	if l.count < l.limit {
		l.count++
		return true
	}
	return false
}

// Snapshot reports the state of the current window without admitting.
func (l *Limiter) Snapshot() Snapshot {
	if l.disabled {
		return Snapshot{Limit: l.limit, Remaining: l.limit}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.windowStart) >= l.window {
		return Snapshot{Limit: l.limit, Remaining: l.limit, Reset: now}
	}

	remaining := l.limit - l.count
	if remaining < 0 {
		remaining = 0
	}
	return Snapshot{
		Limit:     l.limit,
		Remaining: remaining,
		Reset:     l.windowStart.Add(l.window),
	}
}

// Limit returns the configured per-window limit.
func (l *Limiter) Limit() int {
	return l.limit
}
