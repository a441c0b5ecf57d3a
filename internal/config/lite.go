// Package config provides configuration management for the advisor servers.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/biomarker-advisor/internal/domain"
)

// LiteConfig is a simplified configuration for the standalone MCP server.
// It requires no external services: SQLite history and an in-memory cache.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for data files
	History bool   // Record evaluations in SQLite

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Transport settings
	Transport string // Transport type: stdio, http
	HTTPHost  string // HTTP bind host (if transport is http)
	HTTPPort  int    // HTTP port (if transport is http)

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".biomarker-advisor")

	return &LiteConfig{
		DataDir:       dataDir,
		History:       true,
		CacheMaxItems: 1000,
		CacheTTL:      15 * time.Minute,
		Transport:     "stdio",
		HTTPHost:      "127.0.0.1",
		HTTPPort:      8090,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("BIOMARKER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("BIOMARKER_HISTORY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.History = b
		}
	}

	if v := os.Getenv("BIOMARKER_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("BIOMARKER_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("BIOMARKER_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("BIOMARKER_HTTP_HOST"); v != "" {
		cfg.HTTPHost = v
	}
	if v := os.Getenv("BIOMARKER_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	if v := os.Getenv("BIOMARKER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BIOMARKER_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// HistoryDBPath returns the path to the evaluation history SQLite database.
func (c *LiteConfig) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// HistoryConfig maps the lite settings onto the shared history config.
func (c *LiteConfig) HistoryConfig() domain.HistoryConfig {
	backend := "sqlite"
	if !c.History {
		backend = "none"
	}
	return domain.HistoryConfig{
		Backend:            backend,
		SQLitePath:         c.HistoryDBPath(),
		BreakerMaxFailures: 5,
		BreakerTimeout:     30 * time.Second,
	}
}

// CacheConfig maps the lite settings onto the shared cache config.
func (c *LiteConfig) CacheConfig() domain.CacheConfig {
	return domain.CacheConfig{
		Backend:    "memory",
		MaxItems:   c.CacheMaxItems,
		DefaultTTL: c.CacheTTL,
	}
}

// MCPConfig maps the lite settings onto the shared MCP config.
func (c *LiteConfig) MCPConfig() domain.MCPConfig {
	return domain.MCPConfig{
		ServerName:    "biomarker-advisor",
		ServerVersion: "1.0.0",
		TransportType: c.Transport,
		HTTPHost:      c.HTTPHost,
		HTTPPort:      c.HTTPPort,
	}
}
