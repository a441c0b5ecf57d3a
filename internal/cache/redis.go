package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/biomarker-advisor/internal/domain"
)

// RedisCache shares cached outputs between server instances.
type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	logger     *logrus.Logger
	stats      counters
}

// RedisOptions builds client options from the cache config.
func RedisOptions(cfg domain.CacheConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.PoolTimeout > 0 {
		opts.PoolTimeout = cfg.PoolTimeout
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	return opts, nil
}

// NewRedisCache connects to Redis and verifies the connection with a ping.
func NewRedisCache(ctx context.Context, cfg domain.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := RedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisCache(client, cfg.DefaultTTL, logger), nil
}

func newRedisCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisCache{client: client, defaultTTL: ttl, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]domain.Output, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		c.stats.record(false)
		return nil, false, nil
	}
	if err != nil {
		c.stats.errors.Add(1)
		return nil, false, fmt.Errorf("failed to get cached outputs: %w", err)
	}

	var cached CachedOutputs
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Removing corrupted cache entry")
		c.client.Del(ctx, key)
		c.stats.record(false)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.client.Del(ctx, key)
		c.stats.record(false)
		return nil, false, nil
	}

	c.stats.record(true)
	return cached.Outputs, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, outputs []domain.Output) error {
	now := time.Now()
	cached := CachedOutputs{
		Outputs:   copyOutputs(outputs),
		CachedAt:  now,
		ExpiresAt: now.Add(c.defaultTTL),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal cached outputs: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.defaultTTL).Err(); err != nil {
		c.stats.errors.Add(1)
		return fmt.Errorf("failed to cache outputs: %w", err)
	}
	c.stats.sets.Add(1)
	return nil
}

// Size is not tracked for Redis; it is reported as -1.
func (c *RedisCache) Stats() Stats {
	return c.stats.snapshot("redis", -1)
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
