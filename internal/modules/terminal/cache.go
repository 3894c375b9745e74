package terminal

import (
	"sync"
	"time"
)

// Cache holds recently discovered terminals so repeated discovery calls within
// the TTL skip the network sweep entirely.
type Cache struct {
	ttl time.Duration

	mu       sync.RWMutex
	filledAt time.Time
	entries  []Terminal
	now      func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{ttl: ttl, now: time.Now}
}

// Get returns the cached discovery result, or ok=false once the TTL has lapsed.
func (c *Cache) Get() ([]Terminal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.filledAt.IsZero() || c.now().Sub(c.filledAt) > c.ttl {
		return nil, false
	}
	out := make([]Terminal, len(c.entries))
	copy(out, c.entries)
	return out, true
}

// Put replaces the cached result and restarts the TTL.
func (c *Cache) Put(terminals []Terminal) {
	entries := make([]Terminal, len(terminals))
	copy(entries, terminals)
	c.mu.Lock()
	c.entries = entries
	c.filledAt = c.now()
	c.mu.Unlock()
}

// Invalidate drops the cached result so the next discovery rescans.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.filledAt = time.Time{}
	c.entries = nil
	c.mu.Unlock()
}
