// Package ratelimit provides a blocking sliding-window limiter that admits at
// most a fixed number of calls in any trailing window. Calls over the limit are
// delayed, never rejected.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultLimit is the number of calls admitted per window.
	DefaultLimit = 5
	// DefaultWindow is the length of the sliding window.
	DefaultWindow = 60 * time.Second
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSleep replaces the function used to wait for a free slot
func WithSleep(sleep SleepFunc) Option {
	return func(l *Limiter) {
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// Limiter admits at most limit calls in any window of the configured length.
// A single Limiter is safe for concurrent use and all callers share one window.
type Limiter struct {
	limit  int
	window time.Duration

	mu    sync.Mutex
	calls []time.Time // admission times, oldest first

	now   func() time.Time
	sleep SleepFunc
}

// New creates a limiter admitting limit calls per window. Non-positive values
// fall back to DefaultLimit and DefaultWindow.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}

	l := &Limiter{
		limit:  limit,
		window: window,
		calls:  make([]time.Time, 0, limit),
		now:    time.Now,
		sleep:  sleepContext,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Wait blocks until a slot is free in the trailing window, then records the
// call. It only fails when ctx ends while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.evict(now)

		if len(l.calls) < l.limit {
			l.calls = append(l.calls, now)
			l.mu.Unlock()
			return nil
		}

		// The slot frees up once the oldest admission leaves the window.
		delay := l.calls[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if err := l.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Stats reports how many calls are recorded in the current window and the
// configured limit.
func (l *Limiter) Stats() (inWindow, limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evict(l.now())
	return len(l.calls), l.limit
}

// Limit returns the configured number of calls per window
func (l *Limiter) Limit() int {
	return l.limit
}

// Window returns the configured window length
func (l *Limiter) Window() time.Duration {
	return l.window
}

// evict drops admissions that are at least one window old. Callers hold mu.
func (l *Limiter) evict(now time.Time) {
	i := 0
	for i < len(l.calls) && now.Sub(l.calls[i]) >= l.window {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
