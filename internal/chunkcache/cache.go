// Package chunkcache memoizes generated chunks. Entries never need invalidation
// because a chunk is a pure function of its key and the process-wide seed.
package chunkcache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mirage/server/internal/worldgen"
)

// DefaultSize is used when a non-positive size is requested
const DefaultSize = 16384

// Key identifies a chunk for a fixed seed
type Key struct {
	WorldID int64
	X, Y    int
	Size    int
}

// Stats is a snapshot of cache counters
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// Cache wraps a Generator with a bounded LRU
type Cache struct {
	gen    *worldgen.Generator
	chunks *lru.Cache[Key, worldgen.Chunk]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache holding up to size chunks
func New(gen *worldgen.Generator, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	chunks, err := lru.New[Key, worldgen.Chunk](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk cache: %w", err)
	}
	return &Cache{gen: gen, chunks: chunks}, nil
}

// Seed returns the seed of the underlying generator
func (c *Cache) Seed() string {
	return c.gen.Seed()
}

// Chunk returns the cached chunk or generates and stores it. Errors are not cached.
// Callers get their own copy and may modify it.
func (c *Cache) Chunk(worldID int64, x, y, size int) (worldgen.Chunk, error) {
	key := Key{WorldID: worldID, X: x, Y: y, Size: size}
	if chunk, ok := c.chunks.Get(key); ok {
		c.hits.Add(1)
		return chunk.Clone(), nil
	}
	c.misses.Add(1)

	chunk, err := c.gen.Chunk(worldID, x, y, size)
	if err != nil {
		return worldgen.Chunk{}, err
	}
	c.chunks.Add(key, chunk)
	return chunk.Clone(), nil
}

// Stats returns the current counters
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.chunks.Len(),
	}
}

// Purge drops every cached chunk
func (c *Cache) Purge() {
	c.chunks.Purge()
}
