package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/biomarker-advisor/internal/domain"
)

const (
	defaultMaxItems = 1000
	defaultTTL      = 15 * time.Minute
)

// MemoryCache is an in-process LRU with per-entry expiry.
type MemoryCache struct {
	lru   *expirable.LRU[string, []domain.Output]
	stats counters
}

// NewMemoryCache creates a memory cache. Non-positive arguments fall back
// to 1000 entries and a 15 minute TTL.
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []domain.Output](maxItems, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]domain.Output, bool, error) {
	outputs, ok := c.lru.Get(key)
	c.stats.record(ok)
	if !ok {
		return nil, false, nil
	}
	return copyOutputs(outputs), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, outputs []domain.Output) error {
	c.lru.Add(key, copyOutputs(outputs))
	c.stats.sets.Add(1)
	return nil
}

func (c *MemoryCache) Stats() Stats {
	return c.stats.snapshot("memory", c.lru.Len())
}

// Close purges all entries.
func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}
