// Package ratelimit implements the keyed fixed-window attempt counter that
// guards MFA verification against brute force.
//
// Window semantics: the first hit for a key opens a window; hits within the
// window count against the budget; once the window elapses the next hit opens
// a fresh one. The (maxHits+1)th hit inside a window is rejected with the
// instant the window ends as the retry time.
//
// Thresholds and windows are caller-supplied per call. The limiter holds no
// policy and performs no I/O.
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 64

// Decision is the structured result of a CheckAndConsume call. The limiter
// never fails for valid inputs; callers log and map the decision themselves.
type Decision struct {
	Allowed bool
	RetryAt time.Time // zero unless rejected
}

type record struct {
	hits        int
	windowStart time.Time
	window      time.Duration
}

type shard struct {
	mu      sync.Mutex
	records map[string]*record
}

// Limiter is a sharded fixed-window counter. Safe for concurrent use;
// unrelated keys never contend on the same lock.
type Limiter struct {
	shards [shardCount]*shard
	now    func() time.Time
}

// New creates a Limiter using the wall clock.
func New() *Limiter {
	return NewWithClock(time.Now)
}

// NewWithClock creates a Limiter with an injectable clock for tests.
func NewWithClock(now func() time.Time) *Limiter {
	l := &Limiter{now: now}
	for i := range l.shards {
		l.shards[i] = &shard{records: make(map[string]*record)}
	}
	return l
}

func (l *Limiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%shardCount]
}

// CheckAndConsume records one hit against key and reports whether it is
// within budget. maxHits and window must be positive; that is the caller's
// contract, not a runtime error.
//
// Increment-and-compare happens under the shard lock, so concurrent callers
// racing on one key collectively observe exactly maxHits allowed decisions
// per window.
func (l *Limiter) CheckAndConsume(key string, maxHits int, window time.Duration) Decision {
	now := l.now()
	s := l.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || now.Sub(rec.windowStart) >= rec.window {
		// First hit for the key, or the previous window has fully elapsed.
		s.records[key] = &record{hits: 1, windowStart: now, window: window}
		return Decision{Allowed: true}
	}

	rec.hits++
	rec.window = window // caller may retune the policy mid-window
	if rec.hits <= maxHits {
		return Decision{Allowed: true}
	}

	return Decision{RetryAt: rec.windowStart.Add(rec.window)}
}

// Sweep drops records whose window has fully elapsed and returns how many
// were removed. Stale records are harmless (they get overwritten on next
// use), so this exists only to bound memory on a long-lived process.
func (l *Limiter) Sweep() int {
	now := l.now()
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for key, rec := range s.records {
			if now.Sub(rec.windowStart) >= rec.window {
				delete(s.records, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Reset clears every counter. Test isolation only; production code never
// calls it.
func (l *Limiter) Reset() {
	for _, s := range l.shards {
		s.mu.Lock()
		s.records = make(map[string]*record)
		s.mu.Unlock()
	}
}
