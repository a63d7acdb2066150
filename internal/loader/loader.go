// Package loader handles configuration file loading and validation.
//
// This package is responsible for:
//   - Loading YAML configuration files
//   - Expanding environment variables
//   - Validating the resulting configuration
package loader

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/orbitd/internal/errors"
)

// =============================================================================
// Load
// =============================================================================

// Load loads configuration from a YAML file. Values not present in the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// =============================================================================
// Validate
// =============================================================================

// Validate validates the configuration.
func Validate(cfg *Config) error {
	errs := errors.NewValidationErrors()

	// Source validation
	if cfg.Source.PositionURL == "" {
		errs.AddMissing("source.position_url")
	}
	if cfg.Source.Timeout.Duration() <= 0 {
		errs.AddField("source.timeout", "must be positive")
	}
	if cfg.Source.MaxRetries < 1 {
		errs.AddField("source.max_retries", "must be at least 1")
	}
	if cfg.Source.Interval.Duration() <= 0 {
		errs.AddField("source.interval", "must be positive")
	}
	if cfg.Source.Duration.Duration() < 0 {
		errs.AddField("source.duration", "cannot be negative")
	}
	if cfg.Source.AltitudeKm < 0 {
		errs.AddField("source.altitude_km", "cannot be negative")
	}

	// Reference validation
	if lat := cfg.Reference.Latitude; lat < -90 || lat > 90 {
		errs.AddField("reference.latitude", "must be in [-90, 90]")
	}
	if lon := cfg.Reference.Longitude; lon < -180 || lon > 180 {
		errs.AddField("reference.longitude", "must be in [-180, 180]")
	}

	// Window validation
	size := cfg.Window.Size.Duration()
	switch {
	case size <= 0:
		errs.AddField("window.size", "must be positive")
	case size%time.Second != 0:
		errs.AddField("window.size", "must be a whole number of seconds")
	}
	lateness := cfg.Window.AllowedLateness.Duration()
	switch {
	case lateness < 0:
		errs.AddField("window.allowed_lateness", "cannot be negative")
	case lateness%time.Second != 0:
		errs.AddField("window.allowed_lateness", "must be a whole number of seconds")
	}
	if cfg.Window.Percentiles.Enabled {
		if acc := cfg.Window.Percentiles.Accuracy; acc <= 0 || acc >= 0.5 {
			errs.AddField("window.percentiles.accuracy", "must be in (0, 0.5)")
		}
	}

	// Ingest validation
	if cfg.Ingest.ScanInterval.Duration() <= 0 {
		errs.AddField("ingest.scan_interval", "must be positive")
	}
	if cfg.Ingest.MaxBatchFiles < 1 {
		errs.AddField("ingest.max_batch_files", "must be at least 1")
	}
	if cfg.Ingest.DrainTimeout.Duration() <= 0 {
		errs.AddField("ingest.drain_timeout", "must be positive")
	}

	// Output validation
	if cfg.Output.DataDir == "" {
		errs.AddMissing("output.data_dir")
	}
	if cfg.Output.Parquet.Enabled && cfg.Output.Parquet.RowsPerFile < 1 {
		errs.AddField("output.parquet.rows_per_file", "must be at least 1")
	}

	// Logging validation
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs.AddField("logging.level", "must be one of debug, info, warn, error")
	}

	return errs.Err()
}
