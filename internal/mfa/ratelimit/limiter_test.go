package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time forward deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestCheckAndConsumeBudget(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(clock.Now)

	const maxHits = 5
	window := 300 * time.Second

	for i := range maxHits {
		d := l.CheckAndConsume("mfa:user-1", maxHits, window)
		require.True(t, d.Allowed, "hit %d should be allowed", i+1)
		require.True(t, d.RetryAt.IsZero())
	}

	d := l.CheckAndConsume("mfa:user-1", maxHits, window)
	require.False(t, d.Allowed, "hit %d should be rejected", maxHits+1)
	require.Equal(t, clock.Now().Add(window), d.RetryAt)
}

func TestWindowResets(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(clock.Now)

	window := 300 * time.Second

	require.True(t, l.CheckAndConsume("k", 2, window).Allowed)
	require.True(t, l.CheckAndConsume("k", 2, window).Allowed)
	require.False(t, l.CheckAndConsume("k", 2, window).Allowed)

	clock.Advance(window)

	d := l.CheckAndConsume("k", 2, window)
	require.True(t, d.Allowed, "fresh window should start after the old one elapses")
}

func TestKeyIsolation(t *testing.T) {
	l := New()

	window := time.Minute
	for range 3 {
		l.CheckAndConsume("a", 2, window)
	}
	require.False(t, l.CheckAndConsume("a", 2, window).Allowed)

	// Exhausting key a must not affect key b.
	require.True(t, l.CheckAndConsume("b", 2, window).Allowed)
}

func TestConcurrentBound(t *testing.T) {
	l := New()

	const maxHits = 5
	const callers = 50

	var allowed, rejected atomic.Int64
	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(callers)

	for range callers {
		go func() {
			defer done.Done()
			start.Wait()
			if l.CheckAndConsume("contended", maxHits, time.Minute).Allowed {
				allowed.Add(1)
			} else {
				rejected.Add(1)
			}
		}()
	}

	start.Done()
	done.Wait()

	require.EqualValues(t, maxHits, allowed.Load())
	require.EqualValues(t, callers-maxHits, rejected.Load())
}

func TestSweep(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(clock.Now)

	for i := range 10 {
		l.CheckAndConsume(fmt.Sprintf("key-%d", i), 5, time.Minute)
	}
	require.Zero(t, l.Sweep(), "live windows must survive a sweep")

	clock.Advance(time.Minute)
	require.Equal(t, 10, l.Sweep())
}

func TestReset(t *testing.T) {
	l := New()

	window := time.Minute
	l.CheckAndConsume("k", 1, window)
	require.False(t, l.CheckAndConsume("k", 1, window).Allowed)

	l.Reset()

	require.True(t, l.CheckAndConsume("k", 1, window).Allowed)
}
