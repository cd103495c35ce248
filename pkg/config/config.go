package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/fleetplan/fleetplan/pkg/telemetry"
)

var validate = validator.New()

// HistoryConfig configures the reconciliation history store.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables history
	// recording.
	Path string `yaml:"path"`
}

// Config is the tool's own configuration, as opposed to the operator's
// desired fleet configuration.
type Config struct {
	// Logging configures structured logging.
	Logging telemetry.LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metrics collection.
	Metrics telemetry.MetricsConfig `yaml:"metrics"`

	// Tracing configures distributed tracing.
	Tracing telemetry.TracingConfig `yaml:"tracing"`

	// History configures the run history database.
	History HistoryConfig `yaml:"history"`
}

// Default returns the built-in configuration: console logging at info,
// metrics and tracing off, history in the working directory.
func Default() Config {
	t := telemetry.DefaultConfig()
	return Config{
		Logging: t.Logging,
		Metrics: t.Metrics,
		Tracing: t.Tracing,
		History: HistoryConfig{Path: "fleetplan-history.db"},
	}
}

// Load reads a configuration file and merges it over the defaults. An
// empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Telemetry assembles the telemetry configuration for this process.
func (c Config) Telemetry(version string) telemetry.Config {
	return telemetry.Config{
		ServiceName:    "fleetplan",
		ServiceVersion: version,
		Logging:        c.Logging,
		Metrics:        c.Metrics,
		Tracing:        c.Tracing,
	}
}
