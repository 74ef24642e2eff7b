package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLRUSize is the number of entries an LRUCache keeps in memory.
const DefaultLRUSize = 256

// LRUCache keeps recently used entries in memory in front of another
// backend. Writes go through to the backend.
type LRUCache struct {
	front *lru.Cache[string, lruEntry]
	back  Cache
}

type lruEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewLRUCache wraps back with an in-memory LRU of the given size. A nil back
// yields a purely in-memory cache.
func NewLRUCache(back Cache, size int) *LRUCache {
	if size <= 0 {
		size = DefaultLRUSize
	}
	if back == nil {
		back = NewNullCache()
	}
	front, _ := lru.New[string, lruEntry](size) // only errors if size <= 0
	return &LRUCache{front: front, back: back}
}

// Get returns the in-memory entry or falls back to the backend.
func (c *LRUCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if e, ok := c.front.Get(key); ok {
		if e.expiresAt.IsZero() || time.Now().Before(e.expiresAt) {
			return e.data, true, nil
		}
		c.front.Remove(key)
	}
	data, hit, err := c.back.Get(ctx, key)
	if err != nil || !hit {
		return nil, false, err
	}
	c.front.Add(key, lruEntry{data: data})
	return data, true, nil
}

// Set stores the entry in memory and in the backend.
func (c *LRUCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	e := lruEntry{data: data}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	c.front.Add(key, e)
	return c.back.Set(ctx, key, data, ttl)
}

// Len returns the number of entries held in memory.
func (c *LRUCache) Len() int { return c.front.Len() }

// Close closes the backend.
func (c *LRUCache) Close() error {
	c.front.Purge()
	return c.back.Close()
}

var _ Cache = (*LRUCache)(nil)
