package cache

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-advisor/internal/domain"
)

// TieredCache checks memory first, then a shared backend. Shared-tier hits
// are promoted into memory and shared-tier errors degrade to a miss.
type TieredCache struct {
	memory Cache
	shared Cache
	logger *logrus.Logger
}

func NewTieredCache(memory, shared Cache, logger *logrus.Logger) *TieredCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &TieredCache{memory: memory, shared: shared, logger: logger}
}

func (c *TieredCache) Get(ctx context.Context, key string) ([]domain.Output, bool, error) {
	if outputs, ok, _ := c.memory.Get(ctx, key); ok {
		c.logger.WithFields(logrus.Fields{"key": key, "cache_tier": "memory"}).Debug("Cache hit")
		return outputs, true, nil
	}

	outputs, ok, err := c.shared.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).Warn("Shared cache lookup failed")
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}

	c.logger.WithFields(logrus.Fields{"key": key, "cache_tier": "shared"}).Debug("Cache hit")
	if err := c.memory.Set(ctx, key, outputs); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Failed to promote shared cache hit")
	}
	return outputs, true, nil
}

func (c *TieredCache) Set(ctx context.Context, key string, outputs []domain.Output) error {
	if err := c.memory.Set(ctx, key, outputs); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Memory cache write failed")
	}
	return c.shared.Set(ctx, key, outputs)
}

// Stats reports the memory tier with the shared tier's hits added.
func (c *TieredCache) Stats() Stats {
	mem := c.memory.Stats()
	shared := c.shared.Stats()
	return Stats{
		Backend: "tiered",
		Hits:    mem.Hits + shared.Hits,
		Misses:  shared.Misses,
		Sets:    mem.Sets,
		Errors:  shared.Errors,
		Size:    mem.Size,
	}
}

// Close closes both tiers and returns their errors joined.
func (c *TieredCache) Close() error {
	return errors.Join(c.memory.Close(), c.shared.Close())
}
