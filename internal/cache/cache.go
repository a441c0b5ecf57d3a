// Package cache stores rule engine outputs keyed by a digest of the
// classified measurements that produced them.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/biomarker-advisor/internal/domain"
)

const keyPrefix = "biomarker:outputs"

// Cache is implemented by the memory, redis and tiered backends.
type Cache interface {
	Get(ctx context.Context, key string) ([]domain.Output, bool, error)
	Set(ctx context.Context, key string, outputs []domain.Output) error
	Stats() Stats
	Close() error
}

// Stats reports hit/miss counters since construction.
type Stats struct {
	Backend string `json:"backend"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Sets    int64  `json:"sets"`
	Errors  int64  `json:"errors"`
	Size    int    `json:"size"`
}

// HitRatio returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// CachedOutputs wraps cached outputs with metadata.
type CachedOutputs struct {
	Outputs   []domain.Output `json:"outputs"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Key derives the cache key for a measurement list. Order is significant
// because the engine's coverage and lookup rules depend on it.
func Key(ms []domain.Measurement) string {
	var b strings.Builder
	for _, m := range ms {
		b.WriteString(strconv.Itoa(int(m.BiomarkerID)))
		b.WriteByte('=')
		b.WriteString(m.Range.String())
		b.WriteByte(';')
	}
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s:%x", keyPrefix, hash[:16])
}

type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
	errors atomic.Int64
}

func (c *counters) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

func (c *counters) snapshot(backend string, size int) Stats {
	return Stats{
		Backend: backend,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Sets:    c.sets.Load(),
		Errors:  c.errors.Load(),
		Size:    size,
	}
}

func copyOutputs(outputs []domain.Output) []domain.Output {
	out := make([]domain.Output, len(outputs))
	copy(out, outputs)
	return out
}
