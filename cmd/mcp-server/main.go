// Package main provides the standalone biomarker advisor MCP server.
// It needs no external services: history is kept in SQLite under the data
// directory and results are cached in memory.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-advisor/internal/cache"
	"github.com/biomarker-advisor/internal/classifier"
	"github.com/biomarker-advisor/internal/config"
	"github.com/biomarker-advisor/internal/domain"
	"github.com/biomarker-advisor/internal/history"
	"github.com/biomarker-advisor/internal/mcp"
	"github.com/biomarker-advisor/internal/service"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runServer(ctx context.Context) error {
	cfg := config.LoadLiteConfig()
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	// stdout carries the protocol on the stdio transport
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	store, err := history.Open(cfg.HistoryConfig(), domain.DatabaseConfig{}, "", logger)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	resultCache, err := cache.New(ctx, cfg.CacheConfig(), logger)
	if err != nil {
		return err
	}

	advisor := service.NewAdvisor(
		service.NewStandardRuleEngine(logger),
		logger,
		service.WithClassifier(classifier.NewDefault(logger)),
		service.WithCache(resultCache),
		service.WithHistory(store),
	)

	logger.WithFields(logrus.Fields{
		"data_dir":  cfg.DataDir,
		"transport": cfg.Transport,
	}).Info("Starting biomarker advisor MCP server")

	if err := mcp.NewServer(advisor, cfg.MCPConfig(), logger).Run(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		return err
	}

	logger.Info("Biomarker advisor MCP server stopped")
	return nil
}
