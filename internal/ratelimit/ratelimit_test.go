package ratelimit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

// fakeClock drives a Limiter deterministically: sleeping advances time
// instead of blocking the test.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) install(l *Limiter) {
	l.now = func() time.Time { return c.now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		c.now = c.now.Add(d)
		return nil
	}
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func TestAcquireMinimumGap(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := New(30*time.Second, 0)
	clock.install(l)

	var starts []time.Time
	for range 5 {
		if _, err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		starts = append(starts, clock.now)
	}

	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < 30*time.Second {
			t.Errorf("gap between start %d and %d = %v, want >= 30s", i-1, i, gap)
		}
	}
}

func TestAcquireFirstCallImmediate(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := New(time.Minute, 100)
	clock.install(l)

	waited, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if waited != 0 {
		t.Errorf("first Acquire() waited %v, want 0", waited)
	}
}

func TestAcquireHourlyWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	l := New(0, 3)
	clock.install(l)

	base := clock.now

	// First three actions fit the quota without waiting.
	for i := range 3 {
		waited, err := l.Acquire(context.Background())
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		if waited != 0 {
			t.Errorf("action %d waited %v, want 0", i, waited)
		}
		// Spread the starts a little inside the hour.
		clock.now = clock.now.Add(time.Minute)
	}

	// The fourth must wait until the first start ages out of the
	// trailing hour: first start + 1h.
	waited, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if waited == 0 {
		t.Fatal("fourth Acquire() waited 0, want a wait")
	}
	if got, want := clock.now, base.Add(windowSpan); got.Before(want) {
		t.Errorf("fourth action started at %v, want >= %v", got, want)
	}
}

// TestAcquireWindowNeverExceeded replays a long mixed sequence and checks
// the invariant directly: no trailing-hour slice of start timestamps may
// ever hold more than the quota.
func TestAcquireWindowNeverExceeded(t *testing.T) {
	t.Parallel()

	const quota = 5

	clock := newFakeClock()
	l := New(0, quota)
	clock.install(l)

	var starts []time.Time
	for i := range 40 {
		if _, err := l.Acquire(context.Background()); err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
		starts = append(starts, clock.now)
		// Irregular caller cadence.
		clock.now = clock.now.Add(time.Duration(i%7) * time.Minute)
	}

	for i, s := range starts {
		count := 0
		for _, other := range starts {
			if other.After(s.Add(-windowSpan)) && !other.After(s) {
				count++
			}
		}
		if count > quota {
			t.Errorf("start %d: %d actions within trailing hour, want <= %d", i, count, quota)
		}
	}
}

func TestZeroDisablesConstraints(t *testing.T) {
	t.Parallel()

	t.Run("zero interval leaves quota active", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		l := New(0, 2)
		clock.install(l)

		base := clock.now
		for range 3 {
			if _, err := l.Acquire(context.Background()); err != nil {
				t.Fatalf("Acquire() error = %v", err)
			}
		}
		// Third action must have been pushed past the window edge.
		if clock.now.Before(base.Add(windowSpan)) {
			t.Errorf("third action at %v, want >= %v", clock.now, base.Add(windowSpan))
		}
	})

	t.Run("zero quota leaves interval active", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		l := New(10*time.Second, 0)
		clock.install(l)

		base := clock.now
		for range 3 {
			if _, err := l.Acquire(context.Background()); err != nil {
				t.Fatalf("Acquire() error = %v", err)
			}
		}
		if got, want := clock.now.Sub(base), 20*time.Second; got < want {
			t.Errorf("three gapped actions took %v, want >= %v", got, want)
		}
	})

	t.Run("both zero never waits", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		l := New(0, 0)
		clock.install(l)

		for range 100 {
			waited, err := l.Acquire(context.Background())
			if err != nil {
				t.Fatalf("Acquire() error = %v", err)
			}
			if waited != 0 {
				t.Fatalf("Acquire() waited %v with both constraints disabled", waited)
			}
		}
	})
}

func TestAcquireContextCanceled(t *testing.T) {
	t.Parallel()

	l := New(time.Hour, 0)

	// Consume the free first slot.
	if _, err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := l.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() error = %v, want context.Canceled", err)
	}
}

// TestAcquireConcurrent exercises the real clock with a small gap and
// verifies serialized callers never start closer than the gap.
func TestAcquireConcurrent(t *testing.T) {
	t.Parallel()

	const gap = 5 * time.Millisecond

	l := New(gap, 0)

	var (
		mu     sync.Mutex
		starts []time.Time
		wg     sync.WaitGroup
	)

	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	for i := 1; i < len(starts); i++ {
		// time.Now is sampled after Acquire returns, so allow a small
		// scheduling skew below the configured gap.
		if d := starts[i].Sub(starts[i-1]); d < gap/2 {
			t.Errorf("concurrent starts %d and %d only %v apart", i-1, i, d)
		}
	}
}

// TestAcquireWaitCoversQueueTime verifies the reported wait includes time
// spent queued behind a concurrent caller, not just the caller's own
// constraint sleep.
func TestAcquireWaitCoversQueueTime(t *testing.T) {
	t.Parallel()

	const gap = 40 * time.Millisecond

	l := New(gap, 0)

	// Spend the free first slot so every later caller must wait out the gap.
	if _, err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	var (
		mu    sync.Mutex
		waits []time.Duration
		wg    sync.WaitGroup
	)

	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			waited, err := l.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			mu.Lock()
			waits = append(waits, waited)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(waits) != 2 {
		t.Fatalf("got %d waits, want 2", len(waits))
	}
	sort.Slice(waits, func(i, j int) bool { return waits[i] < waits[j] })

	// The slower caller queued through the faster one's full gap sleep and
	// then slept out its own gap, so its wait must span both.
	if waits[1] < gap*3/2 {
		t.Errorf("queued caller reported wait %v, want >= %v", waits[1], gap*3/2)
	}
}
