package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 5, cfg.HTTP.MaxRetries)
	require.Equal(t, 2*time.Second, cfg.HTTP.BaseDelay)
	require.Equal(t, 60*time.Second, cfg.HTTP.MaxDelay)
	require.Equal(t, 800*time.Millisecond, cfg.Pacing.MinDelay)
	require.Equal(t, 4*time.Second, cfg.Pacing.MaxDelay)
	require.Equal(t, []string{"VA"}, cfg.Acquire.Regions)
	require.Equal(t, 3, cfg.Acquire.MaxConsecutiveFailures)
	require.Equal(t, "561720", cfg.Relevance.PrimaryCode)
	require.Equal(t, 20, cfg.Relevance.RelatedCap)
	require.Equal(t, 10, cfg.Relevance.GeneralCap)
	require.Equal(t, 100, cfg.SAM.PageSize)
	require.Equal(t, 2, cfg.SAM.PageCap)
	require.Equal(t, "memory", cfg.Storage.Provider)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
acquire:
  regions: ["VA", "MD", "DC"]
sam:
  api_key: test-key
  page_cap: 3
storage:
  provider: sqlite
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"VA", "MD", "DC"}, cfg.Acquire.Regions)
	require.Equal(t, "test-key", cfg.SAM.APIKey)
	require.Equal(t, 3, cfg.SAM.PageCap)
	require.Equal(t, "sqlite", cfg.Storage.Provider)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no regions", func(c *Config) { c.Acquire.Regions = nil }},
		{"no category codes", func(c *Config) { c.Acquire.CategoryCodes = nil }},
		{"bad failure budget", func(c *Config) { c.Acquire.MaxConsecutiveFailures = 0 }},
		{"max delay below base", func(c *Config) { c.HTTP.MaxDelay = c.HTTP.BaseDelay / 2 }},
		{"unknown store", func(c *Config) { c.Storage.Provider = "etcd" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Provider = "postgres" }},
		{"gcs without bucket", func(c *Config) { c.Archive.Provider = "gcs" }},
		{"pubsub without topic", func(c *Config) { c.Publisher.Provider = "pubsub" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
