package cache

import (
	"sync"
	"time"
)

type entry struct {
	value   any
	expires time.Time
}

// Cache is an in-memory key/value store with per-key expiry. Expired keys are
// dropped lazily when touched and in bulk by Sweep.
type Cache struct {
	mu     sync.Mutex
	items  map[string]entry
	now    func() time.Time
	hits   uint64
	misses uint64
}

func New() *Cache {
	return &Cache{items: map[string]entry{}, now: time.Now}
}

// SetClock replaces the time source. Tests use it to move past TTLs.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry{value: value, expires: c.now().Add(ttl)}
}

// SetIfAbsent stores value only when key is missing or expired and reports
// whether it did.
func (c *Cache) SetIfAbsent(key string, value any, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if e, ok := c.items[key]; ok && now.Before(e.expires) {
		return false
	}
	c.items[key] = entry{value: value, expires: now.Add(ttl)}
	return true
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookup(key)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return e.value, ok
}

// Exists does not count towards hit statistics.
func (c *Cache) Exists(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookup(key)
	return ok
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Sweep removes every expired key and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.items {
		if !now.Before(e.expires) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// HitRate is the percentage of Get calls that found a live key, 100 when Get
// has never been called.
func (c *Cache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 100
	}
	return float64(c.hits) / float64(total) * 100
}

// lookup must be called with c.mu held.
func (c *Cache) lookup(key string) (entry, bool) {
	e, ok := c.items[key]
	if !ok {
		return entry{}, false
	}
	if !c.now().Before(e.expires) {
		delete(c.items, key)
		return entry{}, false
	}
	return e, true
}
