// Package memory provides an in-process TTL cache for query embeddings.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/veritas-labs/veritas-rag/internal/core/ports/driven"
)

// Ensure Cache implements the interface.
var _ driven.EmbeddingCache = (*Cache)(nil)

type entry struct {
	vector    []float32
	expiresAt time.Time
}

// Cache is a mutex-guarded map with per-entry expiry. Expired entries are
// evicted lazily on read and swept whenever the map grows past sweepSize.
type Cache struct {
	mu        sync.RWMutex
	entries   map[string]entry
	now       func() time.Time
	sweepSize int
}

const defaultSweepSize = 1024

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries:   make(map[string]entry),
		now:       time.Now,
		sweepSize: defaultSweepSize,
	}
}

// Get returns the cached vector for key, if present and not expired.
func (c *Cache) Get(_ context.Context, key string) ([]float32, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Recheck under the write lock; a Set may have refreshed it.
		if cur, ok := c.entries[key]; ok && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.vector, true
}

// Set stores vector under key for ttl. A non-positive ttl is a no-op.
func (c *Cache) Set(_ context.Context, key string, vector []float32, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.sweepSize {
		c.sweepLocked()
	}
	c.entries[key] = entry{vector: vector, expiresAt: c.now().Add(ttl)}
}

// Len returns the number of entries, counting unexpired ones only.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	now := c.now()
	for _, e := range c.entries {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n
}

// sweepLocked drops all expired entries. Caller holds the write lock.
func (c *Cache) sweepLocked() {
	now := c.now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
