// Package replay implements the time-boxed seen-set that stops a single TOTP
// code (identified by its time step) from being accepted twice for the same
// member.
//
// This guard is distinct from the verifier's step-monotonicity check: the
// guard rejects re-use of an already-consumed step, while monotonicity rejects
// an older step after a newer one was accepted. Both run together.
package replay

import (
	"hash/fnv"
	"strconv"
	"sync"
	"time"
)

const shardCount = 64

// DefaultTTL matches the validity of one TOTP code plus drift tolerance.
// It is configured independently of the verifier's skew.
const DefaultTTL = 60 * time.Second

type shard struct {
	mu      sync.Mutex
	entries map[string]time.Time // key → expiry
}

// Guard is a sharded (userID, step) seen-set with lazy expiry. Safe for
// concurrent use.
type Guard struct {
	shards [shardCount]*shard
	ttl    time.Duration
	now    func() time.Time
}

// New creates a Guard with the given entry lifetime, using the wall clock.
// A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration) *Guard {
	return NewWithClock(ttl, time.Now)
}

// NewWithClock creates a Guard with an injectable clock for tests.
func NewWithClock(ttl time.Duration, now func() time.Time) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	g := &Guard{ttl: ttl, now: now}
	for i := range g.shards {
		g.shards[i] = &shard{entries: make(map[string]time.Time)}
	}
	return g
}

// entryKey scopes a step per user; the same step for two members never
// interferes.
func entryKey(userID string, step int64) string {
	return userID + ":" + strconv.FormatInt(step, 10)
}

func (g *Guard) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return g.shards[h.Sum32()%shardCount]
}

// ConsumeIfUnseen records (userID, step) and returns true on the first call
// for that pair; any later call while the entry is live returns false. After
// the entry expires the pair may be consumed again.
func (g *Guard) ConsumeIfUnseen(userID string, step int64) bool {
	now := g.now()
	key := entryKey(userID, step)
	s := g.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.entries[key]; ok && now.Before(expiry) {
		return false
	}

	s.entries[key] = now.Add(g.ttl)
	return true
}

// Seen reports whether (userID, step) is currently consumed, without
// recording anything. The verifier uses this to skip candidate steps before
// it has confirmed a code match.
func (g *Guard) Seen(userID string, step int64) bool {
	now := g.now()
	key := entryKey(userID, step)
	s := g.shardFor(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.entries[key]
	if ok && !now.Before(expiry) {
		// Lazily drop the expired entry while we hold the lock.
		delete(s.entries, key)
		return false
	}
	return ok
}

// Sweep removes expired entries across all shards and returns the count.
// Run from the housekeeping loop; consumption is correct without it.
func (g *Guard) Sweep() int {
	now := g.now()
	removed := 0
	for _, s := range g.shards {
		s.mu.Lock()
		for key, expiry := range s.entries {
			if !now.Before(expiry) {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Reset clears every entry. Test isolation only.
func (g *Guard) Reset() {
	for _, s := range g.shards {
		s.mu.Lock()
		s.entries = make(map[string]time.Time)
		s.mu.Unlock()
	}
}
