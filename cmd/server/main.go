package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-advisor/internal/api"
	"github.com/biomarker-advisor/internal/cache"
	"github.com/biomarker-advisor/internal/classifier"
	"github.com/biomarker-advisor/internal/config"
	"github.com/biomarker-advisor/internal/database"
	"github.com/biomarker-advisor/internal/history"
	"github.com/biomarker-advisor/internal/mcp"
	"github.com/biomarker-advisor/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := config.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)

	// Setup graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.History.Backend == "postgres" && cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, configManager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger); err != nil {
			logger.WithError(err).Fatal("Database migration failed")
		}
	}

	store, err := history.Open(cfg.History, cfg.Database, configManager.GetDatabaseURL(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open evaluation history")
	}
	if store != nil {
		defer store.Close()
	}

	resultCache, err := cache.New(ctx, cfg.Cache, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create result cache")
	}
	if resultCache != nil {
		defer resultCache.Close()
	}

	advisor := service.NewAdvisor(
		service.NewStandardRuleEngine(logger),
		logger,
		service.WithClassifier(classifier.NewDefault(logger)),
		service.WithCache(resultCache),
		service.WithHistory(store),
	)

	server := api.NewServer(cfg, advisor, logger)
	server.Mount("/mcp", mcp.NewServer(advisor, cfg.MCP, logger).HTTPHandler())

	logger.WithFields(logrus.Fields{
		"host":            cfg.Server.Host,
		"port":            cfg.Server.Port,
		"history_backend": cfg.History.Backend,
		"cache_backend":   cfg.Cache.Backend,
	}).Info("Starting biomarker advisor API server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
