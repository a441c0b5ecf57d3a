package history

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-advisor/internal/domain"
)

// Open builds the store selected by cfg.Backend wrapped in a BreakerStore.
// It returns a nil Store for "none".
func Open(cfg domain.HistoryConfig, dbCfg domain.DatabaseConfig, databaseURL string, logger *logrus.Logger) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Backend {
	case "", "sqlite":
		store, err = NewSQLiteStore(cfg.SQLitePath)
	case "postgres":
		store, err = NewPostgresStoreFromConfig(databaseURL, dbCfg)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported history backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s history store: %w", cfg.Backend, err)
	}

	return NewBreakerStore(store, BreakerSettings{
		MaxFailures: cfg.BreakerMaxFailures,
		Timeout:     cfg.BreakerTimeout,
	}, logger), nil
}
