// Package cache implements a small TTL cache keyed by normalized strings.
package cache

import (
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long an entry stays valid after it is stored.
const DefaultTTL = 60 * time.Second

// Option configures a Cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for storage and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Cache maps lower-cased keys to values, with storage times kept in a separate
// index. Entries are never evicted; an entry older than the TTL is simply
// treated as missing when read, and is overwritten by the next Set.
type Cache[V any] struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	values   map[string]V
	storedAt map[string]time.Time
}

// New creates an empty cache. A non-positive ttl falls back to DefaultTTL.
func New[V any](ttl time.Duration, opts ...Option) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		ttl:      ttl,
		now:      o.now,
		values:   make(map[string]V),
		storedAt: make(map[string]time.Time),
	}
}

// Normalize returns the canonical form of a cache key.
func Normalize(key string) string {
	return strings.ToLower(key)
}

// TTL returns the validity window of entries.
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

// Get returns the value stored under key if it is still fresh.
func (c *Cache[V]) Get(key string) (V, bool) {
	key = Normalize(key)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.freshLocked(key)
}

// Set stores value under key, stamped with the current time.
func (c *Cache[V]) Set(key string, value V) {
	key = Normalize(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	c.storedAt[key] = c.now()
}

// SetIfAbsent stores value only when key has no fresh entry and reports
// whether it did.
func (c *Cache[V]) SetIfAbsent(key string, value V) bool {
	key = Normalize(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.freshLocked(key); ok {
		return false
	}
	c.values[key] = value
	c.storedAt[key] = c.now()
	return true
}

// Len returns the number of stored entries, stale ones included.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

func (c *Cache[V]) freshLocked(key string) (V, bool) {
	var zero V
	at, ok := c.storedAt[key]
	if !ok {
		return zero, false
	}
	if c.now().Sub(at) >= c.ttl {
		return zero, false
	}
	return c.values[key], true
}
