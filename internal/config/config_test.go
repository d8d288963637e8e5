package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "both", cfg.Logging.Output)
	assert.Equal(t, "logs/contact_ingester.log", cfg.Logging.FilePath)
	assert.Equal(t, "xlsx", cfg.Processing.OutputFormat)
	assert.False(t, cfg.Processing.CaseInsensitiveDomains)
	assert.False(t, cfg.Processing.RequireKeyColumn)
	assert.False(t, cfg.Paths.AllowFolderRuns)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
server:
  port: 9090
  read_timeout: 15s
processing:
  output_format: CSV
  case_insensitive_domains: true
results:
  ttl: 5m
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	t.Setenv("CONTACTS_SERVER_PORT", "9191")
	t.Setenv("CONTACTS_PATHS_ALLOW_FOLDER_RUNS", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port, "env overrides file")
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout, "file overrides default")
	assert.Equal(t, 120*time.Second, cfg.Server.WriteTimeout, "default kept")
	assert.Equal(t, "csv", cfg.Processing.OutputFormat)
	assert.True(t, cfg.Processing.CaseInsensitiveDomains)
	assert.True(t, cfg.Paths.AllowFolderRuns)
	assert.Equal(t, 5*time.Minute, cfg.Results.TTL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"unknown output format", func(c *Config) { c.Processing.OutputFormat = "ods" }},
		{"unknown log output", func(c *Config) { c.Logging.Output = "syslog" }},
		{"rate limit without burst", func(c *Config) { c.Security.RateLimit.Burst = 0 }},
		{"no upload files", func(c *Config) { c.Upload.MaxFiles = 0 }},
		{"sample ratio above one", func(c *Config) { c.Telemetry.SampleRatio = 1.5 }},
		{"unknown trace exporter", func(c *Config) { c.Telemetry.TraceExporter = "jaeger" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}
