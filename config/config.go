// Package config loads pipeline configuration from an optional YAML file
// merged with environment variables. Environment values win over file
// values, and flags (parsed in cmd) win over both.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the fully resolved pipeline configuration.
type Config struct {
	Reader   ReaderConfig
	Renderer RendererConfig
	Store    StoreConfig
}

// ReaderConfig configures the hosted reader provider and its resilience
// wrappers.
type ReaderConfig struct {
	BaseURL        string
	APIKey         string
	ProxyCountry   string
	MinDelay       time.Duration
	ConcurrencyCap int
}

// RendererConfig configures the out-of-process headless renderer used for
// JavaScript-heavy listings.
type RendererConfig struct {
	Command string
	Timeout time.Duration
}

// StoreConfig selects the fingerprint store backend.
type StoreConfig struct {
	// Type is "sqlite" or "postgres".
	Type string
	DSN  string
}

// Load resolves configuration: defaults, then the config file if present,
// then environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Reader: ReaderConfig{
			BaseURL:        "https://api.firecrawl.dev",
			MinDelay:       500 * time.Millisecond,
			ConcurrencyCap: 2,
		},
		Store: StoreConfig{
			Type: "sqlite",
			DSN:  "harvest.db",
		},
	}

	fileCfg, err := LoadConfigFile()
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		mergeFile(cfg, fileCfg)
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides config values from HARVEST_* environment variables.
func applyEnv(cfg *Config) {
	cfg.Reader.BaseURL = GetEnv("HARVEST_READER_BASE_URL", cfg.Reader.BaseURL)
	cfg.Reader.APIKey = GetEnv("HARVEST_READER_API_KEY", cfg.Reader.APIKey)
	cfg.Reader.ProxyCountry = GetEnv("HARVEST_READER_PROXY_COUNTRY", cfg.Reader.ProxyCountry)
	cfg.Reader.MinDelay = GetEnvDuration("HARVEST_READER_MIN_DELAY", cfg.Reader.MinDelay)
	cfg.Reader.ConcurrencyCap = GetEnvInt("HARVEST_READER_CONCURRENCY", cfg.Reader.ConcurrencyCap)
	cfg.Renderer.Command = GetEnv("HARVEST_RENDERER_COMMAND", cfg.Renderer.Command)
	cfg.Renderer.Timeout = GetEnvDuration("HARVEST_RENDERER_TIMEOUT", cfg.Renderer.Timeout)
	cfg.Store.Type = GetEnv("HARVEST_STORE_TYPE", cfg.Store.Type)
	cfg.Store.DSN = GetEnv("HARVEST_STORE_DSN", cfg.Store.DSN)
}

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvDuration parses a duration from an environment variable or returns
// the default.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvInt parses an int from an environment variable or returns the
// default.
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
