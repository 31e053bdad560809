package service

import (
	"sync"
	"time"
)

// DefaultDedupWindow is how long a delivered message ID is remembered
const DefaultDedupWindow = 5 * time.Minute

// SeenCache remembers recently delivered message IDs so provider retries are processed once
type SeenCache struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

// NewSeenCache creates a cache that forgets IDs after window
func NewSeenCache(window time.Duration) *SeenCache {
	return &SeenCache{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// MarkSeen records id and reports whether it was already seen.
// An empty id is never considered a duplicate.
func (c *SeenCache) MarkSeen(id string) bool {
	if id == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	// Expire old records on write to bound memory
	cutoff := now.Add(-c.window)
	for k, ts := range c.seen {
		if ts.Before(cutoff) {
			delete(c.seen, k)
		}
	}

	if _, ok := c.seen[id]; ok {
		return true
	}
	c.seen[id] = now
	return false
}

// Len returns the number of remembered IDs
func (c *SeenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}
