package cache

import (
	"sync"
	"time"
)

// Stats counts cache outcomes since creation.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Expired   uint64
	Size      int
}

// LRU is a small bounded cache with a per-entry TTL. Recency is tracked with
// a use counter, so eviction scans the entries; it is meant for a handful of
// keys such as one alert snapshot per day.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	entries  map[K]*lruEntry[V]
	tick     uint64
	stats    Stats
}

type lruEntry[V any] struct {
	value     V
	expiresAt time.Time
	used      uint64
}

// NewLRU creates a cache holding at most capacity entries, each living ttl.
// A capacity below one is treated as one.
func NewLRU[K comparable, V any](capacity int, ttl time.Duration) *LRU[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[K, V]{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[K]*lruEntry[V], capacity),
	}
}

// Get returns the live value for key. An expired entry is dropped and
// counted as both expired and a miss.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if ok && !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		c.stats.Expired++
		ok = false
	}
	if !ok {
		c.stats.Misses++
		return zero, false
	}
	c.stats.Hits++
	c.tick++
	e.used = c.tick
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *LRU[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tick++
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = c.now().Add(c.ttl)
		e.used = c.tick
		return
	}
	if len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.entries[key] = &lruEntry[V]{value: value, expiresAt: c.now().Add(c.ttl), used: c.tick}
}

func (c *LRU[K, V]) evictOldest() {
	var (
		victim K
		oldest uint64
		found  bool
	)
	for k, e := range c.entries {
		if !found || e.used < oldest {
			victim, oldest, found = k, e.used, true
		}
	}
	if found {
		delete(c.entries, victim)
		c.stats.Evictions++
	}
}

// Delete removes key if present.
func (c *LRU[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops every entry. Counters are kept.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// CleanExpired removes expired entries and reports how many went.
func (c *LRU[K, V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	c.stats.Expired += uint64(n)
	return n
}

// Size returns the number of stored entries, expired ones included until
// they are read or cleaned.
func (c *LRU[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a copy of the counters.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.entries)
	return s
}
