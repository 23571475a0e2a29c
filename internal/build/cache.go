package build

import (
	"context"
	"log"
	"sync"

	"github.com/agentic-research/vmgen/vm"
)

type cacheKey struct {
	fingerprint uint64
	class       int
}

// Cache memoizes codecs by model fingerprint and class. Cached codecs are
// shared by all callers and safe for concurrent use.
type Cache struct {
	Next Builder

	mu     sync.RWMutex
	codecs map[cacheKey]vm.Codec
	hits   int
	misses int
}

func NewCache(next Builder) *Cache {
	return &Cache{Next: next, codecs: make(map[cacheKey]vm.Codec)}
}

func (c *Cache) Build(ctx context.Context, u *Unit) (vm.Codec, error) {
	key := cacheKey{fingerprint: u.Model.Fingerprint, class: u.ClassID}

	c.mu.RLock()
	codec, ok := c.codecs[key]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return codec, nil
	}

	codec, err := c.Next.Build(ctx, u)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	// A concurrent build of the same unit may have won.
	if prev, ok := c.codecs[key]; ok {
		return prev, nil
	}
	c.codecs[key] = codec
	log.Printf("build: cached %s codec (%016x)", u.Class().Name, key.fingerprint)
	return codec, nil
}

// Stats returns the hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Len returns the number of cached codecs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.codecs)
}
