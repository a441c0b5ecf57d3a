package history

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/biomarker-advisor/internal/domain"
)

// BreakerSettings configures BreakerStore.
type BreakerSettings struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
}

// BreakerStore guards a Store with a circuit breaker. While the breaker is
// open calls fail fast with gobreaker.ErrOpenState. Not-found and validation
// errors do not count as failures.
type BreakerStore struct {
	store   Store
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

func NewBreakerStore(store Store, settings BreakerSettings, logger *logrus.Logger) *BreakerStore {
	if logger == nil {
		logger = logrus.New()
	}
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 5
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}

	b := &BreakerStore{store: store, logger: logger}
	b.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "history",
		MaxRequests: 1,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var verr *domain.ValidationError
			return errors.Is(err, domain.ErrNotFound) || errors.As(err, &verr)
		},
	})
	return b
}

// State reports the breaker state ("closed", "half-open" or "open").
func (b *BreakerStore) State() string {
	return b.breaker.State().String()
}

func (b *BreakerStore) Save(ctx context.Context, record *Record) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.store.Save(ctx, record)
	})
	return err
}

func (b *BreakerStore) Get(ctx context.Context, id string) (*Record, error) {
	res, err := b.breaker.Execute(func() (interface{}, error) {
		return b.store.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Record), nil
}

func (b *BreakerStore) List(ctx context.Context, limit, offset int) ([]*Record, error) {
	res, err := b.breaker.Execute(func() (interface{}, error) {
		return b.store.List(ctx, limit, offset)
	})
	if err != nil {
		return nil, err
	}
	return res.([]*Record), nil
}

func (b *BreakerStore) Count(ctx context.Context) (int64, error) {
	res, err := b.breaker.Execute(func() (interface{}, error) {
		return b.store.Count(ctx)
	})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}

func (b *BreakerStore) Delete(ctx context.Context, id string) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.store.Delete(ctx, id)
	})
	return err
}

func (b *BreakerStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.store.ExportJSON(ctx, writer)
	})
	return err
}

func (b *BreakerStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	_, err = b.breaker.Execute(func() (interface{}, error) {
		var ierr error
		imported, skipped, ierr = b.store.ImportJSON(ctx, reader)
		return nil, ierr
	})
	return imported, skipped, err
}

func (b *BreakerStore) Close() error {
	return b.store.Close()
}
