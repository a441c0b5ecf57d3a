package cache

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-advisor/internal/domain"
)

// New builds the cache selected by cfg.Backend. It returns a nil Cache for
// "none"; callers treat that as caching disabled.
func New(ctx context.Context, cfg domain.CacheConfig, logger *logrus.Logger) (Cache, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryCache(cfg.MaxItems, cfg.DefaultTTL), nil
	case "redis":
		shared, err := NewRedisCache(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return NewTieredCache(NewMemoryCache(cfg.MaxItems, cfg.DefaultTTL), shared, logger), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}
