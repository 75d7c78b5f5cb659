// Package cache provides a TTL key/value store with lazy expiration and a
// scoped memoizer built on top of it.
package cache

import (
	"sync"
	"time"
)

// NoExpiry is the TTL value for entries that never expire.
const NoExpiry time.Duration = -1

type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means never expires
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Cache is a TTL key/value store. Expiry checks are lazy: an expired entry is
// evicted on the access that observes it, never by a background sweep. Callers
// may schedule ClearExpired externally.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	now     func() time.Time
}

// New creates an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// NewWithClock creates a cache using the given clock. Used in tests.
func NewWithClock[V any](now func() time.Time) *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]entry[V]),
		now:     now,
	}
}

// Set stores value under key for the given TTL, replacing any previous entry.
// A TTL of NoExpiry (or any negative value) means the entry never expires.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	e := entry[V]{value: value}
	if ttl >= 0 {
		e.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Get returns the value for key, or false if absent. A read past expiry
// evicts the entry and reports absent.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Has reports whether a fresh entry exists for key, evicting it if expired.
func (c *Cache[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes the entry for key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// ClearExpired evicts every expired entry. Intended for callers that want to
// bound memory between accesses.
func (c *Cache[V]) ClearExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of stored entries, including not-yet-evicted
// expired ones.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
