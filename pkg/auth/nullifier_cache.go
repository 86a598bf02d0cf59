package auth

import (
	"sync"
	"time"
)

// NullifierCache tracks recently seen nullifiers so an age proof cannot
// be replayed across sessions or linked across content. Expired entries
// are evicted inline during Record.
type NullifierCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	clock   Clock
}

// NewNullifierCache creates a cache with the given TTL and clock.
func NewNullifierCache(ttl time.Duration, clock Clock) *NullifierCache {
	if clock == nil {
		clock = RealClock{}
	}
	return &NullifierCache{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		clock:   clock,
	}
}

// Record records a nullifier and returns true if it was fresh. Returns
// false for a replay or an empty nullifier.
func (nc *NullifierCache) Record(nullifier string) bool {
	if nullifier == "" {
		return false
	}

	nc.mu.Lock()
	defer nc.mu.Unlock()

	nc.cleanup()

	if _, exists := nc.entries[nullifier]; exists {
		return false
	}

	nc.entries[nullifier] = nc.clock.Now()
	return true
}

// Seen reports whether a nullifier is currently recorded.
func (nc *NullifierCache) Seen(nullifier string) bool {
	nc.mu.Lock()
	defer nc.mu.Unlock()

	nc.cleanup()
	_, exists := nc.entries[nullifier]
	return exists
}

// cleanup evicts expired entries. Must be called with mu held.
func (nc *NullifierCache) cleanup() {
	cutoff := nc.clock.Now().Add(-nc.ttl)
	for k, v := range nc.entries {
		if v.Before(cutoff) {
			delete(nc.entries, k)
		}
	}
}
