package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.Equal(t, "fleetplan-history.db", cfg.History.Path)
}

func TestLoadOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", `
logging:
  level: debug
  format: json
metrics:
  enabled: true
history:
  path: /var/db/fleetplan.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/var/db/fleetplan.db", cfg.History.Path)

	// Untouched sections keep their defaults.
	assert.Equal(t, "none", cfg.Tracing.Exporter)
}

func TestLoadRejectsBadLevel(t *testing.T) {
	path := writeFile(t, "config.yaml", `
logging:
  level: loud
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBadSamplingRate(t *testing.T) {
	path := writeFile(t, "config.yaml", `
tracing:
  enabled: true
  exporter: stdout
  sampling_rate: 2.5
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestTelemetryAssembly(t *testing.T) {
	cfg := Default()
	tel := cfg.Telemetry("1.2.3")
	assert.Equal(t, "fleetplan", tel.ServiceName)
	assert.Equal(t, "1.2.3", tel.ServiceVersion)
	assert.Equal(t, cfg.Logging, tel.Logging)
}
