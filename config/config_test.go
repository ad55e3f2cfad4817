package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.firecrawl.dev", cfg.Reader.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Reader.MinDelay)
	assert.Equal(t, 2, cfg.Reader.ConcurrencyCap)
	assert.Equal(t, "sqlite", cfg.Store.Type)
	assert.Equal(t, "harvest.db", cfg.Store.DSN)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("HARVEST_READER_API_KEY", "env-key")
	t.Setenv("HARVEST_READER_MIN_DELAY", "2s")
	t.Setenv("HARVEST_READER_CONCURRENCY", "4")
	t.Setenv("HARVEST_STORE_TYPE", "postgres")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Reader.APIKey)
	assert.Equal(t, 2*time.Second, cfg.Reader.MinDelay)
	assert.Equal(t, 4, cfg.Reader.ConcurrencyCap)
	assert.Equal(t, "postgres", cfg.Store.Type)
}

func TestLoadConfigFileMissingIsNotAnError(t *testing.T) {
	fileCfg, err := loadConfigFileFrom(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Nil(t, fileCfg)
}

func TestLoadConfigFileParsesAndMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
reader:
  api_key: file-key
  min_delay: 1s
store:
  type: postgres
  dsn: postgres://localhost/harvest
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	fileCfg, err := loadConfigFileFrom(path)
	require.NoError(t, err)
	require.NotNil(t, fileCfg)

	cfg := &Config{
		Reader: ReaderConfig{BaseURL: "https://api.firecrawl.dev", MinDelay: 500 * time.Millisecond, ConcurrencyCap: 2},
		Store:  StoreConfig{Type: "sqlite", DSN: "harvest.db"},
	}
	mergeFile(cfg, fileCfg)

	assert.Equal(t, "file-key", cfg.Reader.APIKey)
	assert.Equal(t, time.Second, cfg.Reader.MinDelay)
	assert.Equal(t, "https://api.firecrawl.dev", cfg.Reader.BaseURL, "unset file fields keep defaults")
	assert.Equal(t, "postgres://localhost/harvest", cfg.Store.DSN)
}

func TestLoadConfigFileRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml: ["), 0o600))

	_, err := loadConfigFileFrom(path)
	assert.Error(t, err)
}
