package dedupe

import (
	"sync"
	"time"
)

type entry struct {
	key string
	ts  time.Time
}

// Cache remembers recently handled keys, such as corroboration article IDs, for a bounded
// time. The oldest keys are evicted first once capacity is exceeded.
type Cache struct {
	mu       sync.Mutex
	items    map[string]time.Time
	order    []entry
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewCache creates a cache with the provided capacity and ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		items:    make(map[string]time.Time, capacity),
		order:    make([]entry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// IsSeen returns true when the key has already been observed inside the ttl window.
// It does not mark the key as seen; use MarkSeen() to record a key.
func (c *Cache) IsSeen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seenLocked(key, c.now())
}

// MarkSeen records that a key has been handled.
func (c *Cache) MarkSeen(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(key, c.now())
}

// Claim marks key as seen and reports whether it was new. Two concurrent callers with the
// same key never both get true.
func (c *Cache) Claim(key string) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seenLocked(key, now) {
		return false
	}
	c.markLocked(key, now)
	return true
}

// Forget drops key so a later Claim succeeds again.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Len returns the number of keys currently remembered.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) seenLocked(key string, now time.Time) bool {
	ts, ok := c.items[key]
	return ok && now.Sub(ts) <= c.ttl
}

func (c *Cache) markLocked(key string, now time.Time) {
	c.items[key] = now
	c.order = append(c.order, entry{key: key, ts: now})
	c.compact(now)
}

func (c *Cache) compact(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].ts.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		if ts, ok := c.items[oldest.key]; ok && ts.Equal(oldest.ts) {
			delete(c.items, oldest.key)
		}
	}
}
