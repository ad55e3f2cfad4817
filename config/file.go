package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the structure of ~/.harvest/config.yaml. All fields are
// optional; unset fields keep their defaults. Durations are written as
// strings ("500ms", "2s").
type FileConfig struct {
	Reader *struct {
		BaseURL        string `yaml:"base_url"`
		APIKey         string `yaml:"api_key"`
		ProxyCountry   string `yaml:"proxy_country"`
		MinDelay       string `yaml:"min_delay"`
		ConcurrencyCap int    `yaml:"concurrency_cap"`
	} `yaml:"reader"`
	Renderer *struct {
		Command string `yaml:"command"`
		Timeout string `yaml:"timeout"`
	} `yaml:"renderer"`
	Store *struct {
		Type string `yaml:"type"`
		DSN  string `yaml:"dsn"`
	} `yaml:"store"`
}

// LoadConfigFile loads configuration from ~/.harvest/config.yaml. Returns
// nil if the file doesn't exist (not an error). Returns an error if the
// file exists but cannot be parsed.
func LoadConfigFile() (*FileConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	return loadConfigFileFrom(filepath.Join(homeDir, ".harvest", "config.yaml"))
}

// loadConfigFileFrom reads and parses one config file path.
func loadConfigFileFrom(configPath string) (*FileConfig, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil // File doesn't exist -- not an error
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// mergeFile copies file values over the defaults, field by field, skipping
// anything the file leaves unset.
func mergeFile(cfg *Config, file *FileConfig) {
	if file.Reader != nil {
		if file.Reader.BaseURL != "" {
			cfg.Reader.BaseURL = file.Reader.BaseURL
		}
		if file.Reader.APIKey != "" {
			cfg.Reader.APIKey = file.Reader.APIKey
		}
		if file.Reader.ProxyCountry != "" {
			cfg.Reader.ProxyCountry = file.Reader.ProxyCountry
		}
		if d := parseDuration(file.Reader.MinDelay); d > 0 {
			cfg.Reader.MinDelay = d
		}
		if file.Reader.ConcurrencyCap > 0 {
			cfg.Reader.ConcurrencyCap = file.Reader.ConcurrencyCap
		}
	}
	if file.Renderer != nil {
		if file.Renderer.Command != "" {
			cfg.Renderer.Command = file.Renderer.Command
		}
		if d := parseDuration(file.Renderer.Timeout); d > 0 {
			cfg.Renderer.Timeout = d
		}
	}
	if file.Store != nil {
		if file.Store.Type != "" {
			cfg.Store.Type = file.Store.Type
		}
		if file.Store.DSN != "" {
			cfg.Store.DSN = file.Store.DSN
		}
	}
}

// parseDuration parses a duration string, returning 0 for empty or invalid
// values so the default survives.
func parseDuration(value string) time.Duration {
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
