package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomarker-advisor/internal/domain"
)

func sampleOutputs() []domain.Output {
	return []domain.Output{
		{Message: "glucose critical", Importance: 3, RuleID: 2},
		{Message: "androgen binding", Importance: 2, RuleID: 19},
	}
}

func TestKey(t *testing.T) {
	a := []domain.Measurement{
		domain.NewMeasurement(domain.Glucose, 400, domain.CRITICAL_ABUNDANCE),
		domain.NewMeasurement(domain.HbA1c, 5, domain.NORMAL_ZONE),
	}
	sameRanges := []domain.Measurement{
		domain.NewMeasurement(domain.Glucose, 410, domain.CRITICAL_ABUNDANCE),
		domain.NewMeasurement(domain.HbA1c, 5.2, domain.NORMAL_ZONE),
	}
	reordered := []domain.Measurement{a[1], a[0]}
	absent := []domain.Measurement{
		domain.Unclassified(domain.Glucose, 400),
		domain.NewMeasurement(domain.HbA1c, 5, domain.NORMAL_ZONE),
	}

	assert.Equal(t, Key(a), Key(sameRanges), "values do not affect the outputs")
	assert.NotEqual(t, Key(a), Key(reordered))
	assert.NotEqual(t, Key(a), Key(absent))
	assert.Contains(t, Key(a), keyPrefix)
	assert.Equal(t, Key(nil), Key([]domain.Measurement{}))
}

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, time.Minute)

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	outputs := sampleOutputs()
	require.NoError(t, c.Set(ctx, "k", outputs))
	outputs[0].Message = "mutated"

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "glucose critical", got[0].Message, "stored outputs are copied")

	got[1].RuleID = 99
	again, _, _ := c.Get(ctx, "k")
	assert.Equal(t, 19, again[1].RuleID, "returned outputs are copied")

	stats := c.Stats()
	assert.Equal(t, "memory", stats.Backend)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, 1, stats.Size)
	assert.InDelta(t, 2.0/3.0, stats.HitRatio(), 0.001)
}

func TestMemoryCache_EmptyOutputsAreCached(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, time.Minute)

	require.NoError(t, c.Set(ctx, "k", []domain.Output{}))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMemoryCache_Eviction(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, time.Minute)

	require.NoError(t, c.Set(ctx, "a", sampleOutputs()))
	require.NoError(t, c.Set(ctx, "b", sampleOutputs()))
	require.NoError(t, c.Set(ctx, "c", sampleOutputs()))

	_, ok, _ := c.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "c")
	assert.True(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10, 20*time.Millisecond)

	require.NoError(t, c.Set(ctx, "k", sampleOutputs()))
	time.Sleep(60 * time.Millisecond)

	_, ok, _ := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_Defaults(t *testing.T) {
	c := NewMemoryCache(0, 0)
	require.NotNil(t, c)
	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Stats().Size)
}

type stubCache struct {
	entries  map[string][]domain.Output
	getErr   error
	setErr   error
	closeErr error
	closed   bool
}

func newStubCache() *stubCache {
	return &stubCache{entries: map[string][]domain.Output{}}
}

func (s *stubCache) Get(_ context.Context, key string) ([]domain.Output, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	o, ok := s.entries[key]
	return o, ok, nil
}

func (s *stubCache) Set(_ context.Context, key string, outputs []domain.Output) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.entries[key] = outputs
	return nil
}

func (s *stubCache) Stats() Stats { return Stats{Backend: "stub"} }

func (s *stubCache) Close() error {
	s.closed = true
	return s.closeErr
}

func TestTieredCache_PromotesSharedHits(t *testing.T) {
	ctx := context.Background()
	shared := newStubCache()
	shared.entries["k"] = sampleOutputs()

	mem := NewMemoryCache(10, time.Minute)
	c := NewTieredCache(mem, shared, logrus.New())

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleOutputs(), got)

	_, inMemory, _ := mem.Get(ctx, "k")
	assert.True(t, inMemory)
}

func TestTieredCache_SharedErrorIsMiss(t *testing.T) {
	ctx := context.Background()
	shared := newStubCache()
	shared.getErr = errors.New("connection refused")

	c := NewTieredCache(NewMemoryCache(10, time.Minute), shared, logrus.New())

	_, ok, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestTieredCache_SetWritesBothTiers(t *testing.T) {
	ctx := context.Background()
	shared := newStubCache()
	mem := NewMemoryCache(10, time.Minute)
	c := NewTieredCache(mem, shared, logrus.New())

	require.NoError(t, c.Set(ctx, "k", sampleOutputs()))
	assert.Contains(t, shared.entries, "k")
	_, ok, _ := mem.Get(ctx, "k")
	assert.True(t, ok)

	require.NoError(t, c.Close())
	assert.True(t, shared.closed)
}

func TestTieredCache_MemoryTierFailures(t *testing.T) {
	ctx := context.Background()

	memory := newStubCache()
	memory.setErr = errors.New("memory full")
	memory.closeErr = errors.New("memory close failed")
	shared := newStubCache()
	shared.entries["promoted"] = sampleOutputs()

	var logs bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&logs)
	c := NewTieredCache(memory, shared, logger)

	require.NoError(t, c.Set(ctx, "k", sampleOutputs()), "a memory tier failure does not fail the write")
	assert.Contains(t, shared.entries, "k")
	assert.Contains(t, logs.String(), "Memory cache write failed")

	got, ok, err := c.Get(ctx, "promoted")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleOutputs(), got)
	assert.Contains(t, logs.String(), "Failed to promote shared cache hit")

	err = c.Close()
	assert.ErrorIs(t, err, memory.closeErr)
	assert.True(t, memory.closed)
	assert.True(t, shared.closed, "the shared tier is closed even when memory fails")
}

func TestRedisOptions(t *testing.T) {
	opts, err := RedisOptions(domain.CacheConfig{
		RedisURL:    "redis://:secret@cache.internal:6380/2",
		PoolSize:    20,
		PoolTimeout: 3 * time.Second,
		MaxRetries:  5,
	})
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, 3*time.Second, opts.PoolTimeout)
	assert.Equal(t, 5, opts.MaxRetries)

	_, err = RedisOptions(domain.CacheConfig{RedisURL: "http://not-redis"})
	assert.Error(t, err)
}

func TestNew_Backends(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, domain.CacheConfig{Backend: "memory", MaxItems: 5}, logrus.New())
	require.NoError(t, err)
	assert.IsType(t, &MemoryCache{}, c)

	c, err = New(ctx, domain.CacheConfig{Backend: "none"}, logrus.New())
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = New(ctx, domain.CacheConfig{Backend: "memcached"}, logrus.New())
	assert.Error(t, err)

	_, err = New(ctx, domain.CacheConfig{Backend: "redis", RedisURL: "::bad::"}, logrus.New())
	assert.Error(t, err)
}
