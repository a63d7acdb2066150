// Package loader - Configuration Types
//
// Defines the YAML configuration structure for orbitd.
package loader

import (
	"path/filepath"
	"time"

	"github.com/xtxerr/orbitd/config"
)

// =============================================================================
// Root Configuration
// =============================================================================

// Config is the root configuration structure for orbitd.
type Config struct {
	// Source configures the position API poller.
	Source SourceConfig `yaml:"source"`

	// Reference is the fixed coordinate for the per-record distance field.
	Reference ReferenceConfig `yaml:"reference"`

	// Window configures event-time aggregation.
	Window WindowConfig `yaml:"window"`

	// Ingest configures the spool consumer loop.
	Ingest IngestConfig `yaml:"ingest"`

	// Output configures sinks and file locations.
	Output OutputConfig `yaml:"output"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`
}

// =============================================================================
// Source Configuration
// =============================================================================

// SourceConfig configures the position API poller.
type SourceConfig struct {
	// PositionURL is the current-position endpoint.
	// Default: http://api.open-notify.org/iss-now.json
	PositionURL string `yaml:"position_url"`

	// CrewURL is the people-in-space endpoint, fetched once at startup.
	// Default: http://api.open-notify.org/astros.json
	CrewURL string `yaml:"crew_url"`

	// Timeout bounds a single HTTP request.
	// Default: 10s
	Timeout Duration `yaml:"timeout"`

	// MaxRetries is attempts per poll cycle before the cycle is skipped.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// Interval is the pause between successive polls.
	// Default: 5s
	Interval Duration `yaml:"interval"`

	// Duration bounds the producer run. Zero runs until a signal.
	// Default: 300s
	Duration Duration `yaml:"duration"`

	// AltitudeKm is attached to every sample; the API does not report it.
	// Default: 408.0
	AltitudeKm float64 `yaml:"altitude_km"`
}

// ReferenceConfig is the coordinate the distance field is measured to.
type ReferenceConfig struct {
	// Default: 48.8566 (Paris)
	Latitude float64 `yaml:"latitude"`

	// Default: 2.3522
	Longitude float64 `yaml:"longitude"`
}

// =============================================================================
// Window Configuration
// =============================================================================

// WindowConfig configures tumbling event-time windows.
type WindowConfig struct {
	// Size is the window length. Must be a whole number of seconds.
	// Default: 60s
	Size Duration `yaml:"size"`

	// AllowedLateness is how far the watermark trails the max observed
	// event time.
	// Default: 10s
	AllowedLateness Duration `yaml:"allowed_lateness"`

	// Percentiles configures DDSketch velocity percentiles.
	Percentiles PercentilesConfig `yaml:"percentiles"`
}

// PercentilesConfig configures sketch-based percentile calculation.
type PercentilesConfig struct {
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Accuracy is the sketch relative accuracy (0.01 = 1% error).
	// Default: 0.01
	Accuracy float64 `yaml:"accuracy"`
}

// =============================================================================
// Ingest Configuration
// =============================================================================

// IngestConfig configures the spool consumer.
type IngestConfig struct {
	// ScanInterval is how often the spool directory is scanned.
	// Default: 1s
	ScanInterval Duration `yaml:"scan_interval"`

	// MaxBatchFiles caps files per micro-batch.
	// Default: 512
	MaxBatchFiles int `yaml:"max_batch_files"`

	// DrainTimeout bounds the final drain on shutdown.
	// Default: 30s
	DrainTimeout Duration `yaml:"drain_timeout"`
}

// =============================================================================
// Output Configuration
// =============================================================================

// OutputConfig configures file locations and sinks.
type OutputConfig struct {
	// DataDir is the root directory for spool, checkpoint and sink files.
	// Default: "./data"
	DataDir string `yaml:"data_dir"`

	// Console enables the human-readable record tail on stdout.
	// Default: true
	Console bool `yaml:"console"`

	// Parquet configures the window-statistics archive.
	Parquet ParquetConfig `yaml:"parquet"`

	// ProgressInterval is how often the pipeline logs a progress line.
	// Default: 30s
	ProgressInterval Duration `yaml:"progress_interval"`
}

// ParquetConfig configures the parquet stats archive.
type ParquetConfig struct {
	// Default: true
	Enabled bool `yaml:"enabled"`

	// RowsPerFile rotates segments after this many rows.
	// Default: 4096
	RowsPerFile int `yaml:"rows_per_file"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// JSON switches the handler to JSON output.
	// Default: false
	JSON bool `yaml:"json"`
}

// =============================================================================
// Derived Paths
// =============================================================================

// SpoolDir returns the spool directory under DataDir.
func (c *Config) SpoolDir() string {
	return filepath.Join(c.Output.DataDir, "spool")
}

// CheckpointPath returns the ingest cursor file path.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.Output.DataDir, config.DefaultCheckpointName)
}

// RecordsPath returns the processed-records stream file path.
func (c *Config) RecordsPath() string {
	return filepath.Join(c.Output.DataDir, config.DefaultRecordsFile)
}

// StatsPath returns the window-statistics stream file path.
func (c *Config) StatsPath() string {
	return filepath.Join(c.Output.DataDir, config.DefaultStatsFile)
}

// ParquetDir returns the parquet archive directory.
func (c *Config) ParquetDir() string {
	return filepath.Join(c.Output.DataDir, config.DefaultParquetDir)
}

// =============================================================================
// Defaults
// =============================================================================

// DefaultConfig returns a Config with documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			PositionURL: config.DefaultPositionURL,
			CrewURL:     config.DefaultCrewURL,
			Timeout:     Duration(config.DefaultFetchTimeout),
			MaxRetries:  config.DefaultMaxRetries,
			Interval:    Duration(config.DefaultPollInterval),
			Duration:    Duration(config.DefaultRunDuration),
			AltitudeKm:  config.DefaultAltitudeKm,
		},

		Reference: ReferenceConfig{
			Latitude:  config.DefaultReferenceLat,
			Longitude: config.DefaultReferenceLon,
		},

		Window: WindowConfig{
			Size:            Duration(config.DefaultWindowSize),
			AllowedLateness: Duration(config.DefaultAllowedLateness),
			Percentiles: PercentilesConfig{
				Enabled:  true,
				Accuracy: config.DefaultPercentileAccuracy,
			},
		},

		Ingest: IngestConfig{
			ScanInterval:  Duration(config.DefaultScanInterval),
			MaxBatchFiles: config.DefaultMaxBatchFiles,
			DrainTimeout:  Duration(config.DefaultDrainTimeout),
		},

		Output: OutputConfig{
			DataDir: "./data",
			Console: true,
			Parquet: ParquetConfig{
				Enabled:     true,
				RowsPerFile: config.DefaultParquetRowsPerFile,
			},
			ProgressInterval: Duration(config.DefaultProgressInterval),
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// Custom Types
// =============================================================================

// Duration is a time.Duration that can be unmarshaled from YAML, either as
// a duration string ("10s") or a plain number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var i int
		if err := unmarshal(&i); err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
