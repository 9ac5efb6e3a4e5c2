package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

// NoExpiration stores an entry that never expires.
const NoExpiration time.Duration = -1

// DefaultTTL is used by Memoize when neither the cache nor the call site sets one.
const DefaultTTL = time.Hour

// Entry is a stored value. A zero ExpiresAt means the entry never expires.
type Entry struct {
	Value     any
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (e Entry) expired(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(e.ExpiresAt)
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Size      int    `json:"size"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithDefaultTTL sets the TTL Memoize uses when the call site does not pass one.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl != 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithMetrics exports hit/miss/eviction counters.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// Cache is a process-wide key/value store with per-entry expiry.
// A single RWMutex guards the map; readers never observe a half-written entry.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry

	now        func() time.Time
	defaultTTL time.Duration
	metrics    *Metrics

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]Entry),
		now:        time.Now,
		defaultTTL: DefaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics != nil {
		c.metrics.observeSize(c.Size)
	}
	return c
}

// Get returns the value for key. Expired entries are removed and reported as absent.
func (c *Cache) Get(key string) (any, bool) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && !entry.expired(now) {
		c.hits.Add(1)
		c.metrics.hit()
		return entry.Value, true
	}

	if ok {
		c.mu.Lock()
		// the entry may have been replaced since the read lock was released
		if current, still := c.entries[key]; still && current.expired(now) {
			delete(c.entries, key)
			c.evictions.Add(1)
			c.metrics.evicted(reasonExpired, 1)
		}
		c.mu.Unlock()
	}

	c.misses.Add(1)
	c.metrics.miss()
	return nil, false
}

// Set stores value under key, replacing any previous entry.
// ttl >= 0 expires the entry after ttl (0 expires it immediately); NoExpiration keeps it forever.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	now := c.now()
	entry := Entry{Value: value, CreatedAt: now}
	if ttl >= 0 {
		entry.ExpiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Invalidate removes key if present.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.evictions.Add(1)
		c.metrics.evicted(reasonInvalidated, 1)
	}
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]Entry)
	c.evictions.Add(uint64(n))
	c.metrics.evicted(reasonCleared, n)
}

// Size counts stored entries, including expired ones not yet evicted.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// SweepExpired eagerly removes expired entries and returns how many were dropped.
func (c *Cache) SweepExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.evictions.Add(uint64(removed))
	c.metrics.evicted(reasonSwept, removed)
	return removed
}

func (c *Cache) Stats() Stats {
	return Stats{
		Size:      c.Size(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// DefaultTTLValue returns the TTL applied by Memoize when none is given.
func (c *Cache) DefaultTTLValue() time.Duration {
	return c.defaultTTL
}
