// Package ratelimit gates externally visible crawl actions behind two
// independent constraints: a minimum gap between consecutive actions and a
// rolling hourly quota computed over a sliding window of start timestamps.
package ratelimit

import (
	"context"
	"time"
)

// windowSpan is the span of the rolling quota window.
const windowSpan = time.Hour

// Limiter enforces the stricter of a minimum inter-action gap and a
// trailing-hour action quota. The zero value of either parameter disables
// that constraint.
//
// Design decision: the quota uses a sliding window of timestamps rather
// than a fixed hourly bucket. Bucket counters allow a burst of up to twice
// the quota across a bucket boundary; a sliding window does not.
//
// A Limiter is an explicitly constructed value passed to its users, never
// process-global state, so independent crawl configurations can coexist.
type Limiter struct {
	// minInterval is the minimum gap between action starts. Zero disables.
	minInterval time.Duration

	// maxPerHour caps action starts in any trailing windowSpan. Zero disables.
	maxPerHour int

	// sem serializes the whole acquire-then-record step. Concurrent
	// callers queue here, so gating decisions never double-count.
	// A channel rather than sync.Mutex so a waiter can still honor
	// context cancellation while queued.
	sem chan struct{}

	// lastStart is the start time of the most recent gated action.
	lastStart time.Time

	// window holds start timestamps within the trailing windowSpan,
	// oldest first. Only maintained when maxPerHour > 0.
	window []time.Time

	// now and sleep are indirected for tests with a synthetic clock.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter. minInterval <= 0 disables the gap constraint;
// maxPerHour <= 0 disables the hourly quota.
func New(minInterval time.Duration, maxPerHour int) *Limiter {
	return &Limiter{
		minInterval: minInterval,
		maxPerHour:  maxPerHour,
		sem:         make(chan struct{}, 1),
		now:         time.Now,
		sleep:       sleepContext,
	}
}

// Acquire blocks until both constraints allow a new action to start, then
// records the action's start timestamp and returns how long the caller
// waited. The limiter itself never rejects: the only error is the caller's
// context being canceled while waiting.
func (l *Limiter) Acquire(ctx context.Context) (time.Duration, error) {
	// Measured before queuing on sem: time spent behind a concurrent
	// caller is part of the wait the caller experienced.
	begin := l.now()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	defer func() { <-l.sem }()

	for {
		now := l.now()
		wait := l.required(now)
		if wait <= 0 {
			l.record(now)
			return now.Sub(begin), nil
		}
		if err := l.sleep(ctx, wait); err != nil {
			return l.now().Sub(begin), err
		}
	}
}

// required returns how long the caller must still wait before an action
// may start at now. Zero or negative means capacity exists.
func (l *Limiter) required(now time.Time) time.Duration {
	var wait time.Duration

	if l.minInterval > 0 && !l.lastStart.IsZero() {
		if d := l.minInterval - now.Sub(l.lastStart); d > wait {
			wait = d
		}
	}

	if l.maxPerHour > 0 {
		l.prune(now)
		if len(l.window) >= l.maxPerHour {
			// Capacity frees when the oldest start ages out.
			if d := l.window[0].Add(windowSpan).Sub(now); d > wait {
				wait = d
			}
		}
	}

	return wait
}

// record notes an action start at now.
func (l *Limiter) record(now time.Time) {
	l.lastStart = now
	if l.maxPerHour > 0 {
		l.window = append(l.window, now)
	}
}

// prune drops window entries older than windowSpan before now.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-windowSpan)
	i := 0
	for i < len(l.window) && !l.window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.window = append(l.window[:0], l.window[i:]...)
	}
}

// sleepContext suspends for d or until ctx is canceled, whichever is first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
