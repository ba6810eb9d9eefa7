package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// MemoryCache is the in-process Cache backend. TTL expiry is checked lazily
// on read; expired entries are dropped on access and wholesale during
// DeleteByPrefix. Values are stored as JSON bytes so the round-trip behaves
// identically to the Redis backend.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string, dest any) error {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return ErrCacheMiss
	}
	return json.Unmarshal(entry.data, dest)
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// DeleteByPrefix implements Cache.
func (c *MemoryCache) DeleteByPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	return nil
}

// Ping implements Cache. The in-process backend is always alive.
func (c *MemoryCache) Ping(context.Context) error { return nil }

// Close implements Cache.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	c.entries = make(map[string]memoryEntry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of live entries, counting not-yet-collected expired
// ones. Used by tests and the health view.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
