// Package config provides configuration defaults and utilities
// for the orbitd application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or CLI flags.
package config

import "time"

// =============================================================================
// Source Defaults
// =============================================================================

const (
	// DefaultPositionURL is the open-notify endpoint for the current ISS position.
	// Override via config: source.position_url
	DefaultPositionURL = "http://api.open-notify.org/iss-now.json"

	// DefaultCrewURL is the open-notify endpoint for people currently in space.
	// Override via config: source.crew_url
	DefaultCrewURL = "http://api.open-notify.org/astros.json"

	// DefaultFetchTimeout bounds a single HTTP fetch. No poll blocks longer
	// than this regardless of retries.
	// Override via config: source.timeout
	DefaultFetchTimeout = 10 * time.Second

	// DefaultMaxRetries is the number of attempts for a transient fetch
	// failure before the poll cycle is skipped. Backoff between attempts is
	// exponential with base 2 seconds (1s, 2s, 4s, ...).
	// Override via config: source.max_retries
	DefaultMaxRetries = 3

	// DefaultPollInterval is the sleep between successive position fetches.
	// Override via config: source.interval
	DefaultPollInterval = 5 * time.Second

	// DefaultRunDuration is how long the producer loop runs before a normal
	// exit. Zero means unbounded (stop on signal only).
	// Override via config: source.duration
	DefaultRunDuration = 300 * time.Second

	// DefaultAltitudeKm is the average ISS orbital altitude, attached to
	// every sample. The API does not report altitude.
	DefaultAltitudeKm = 408.0
)

// =============================================================================
// Reference Coordinate Defaults
// =============================================================================

const (
	// DefaultReferenceLat / DefaultReferenceLon is the fixed coordinate used
	// for the per-record distance field. Defaults to Paris.
	// Override via config: reference.latitude / reference.longitude
	DefaultReferenceLat = 48.8566
	DefaultReferenceLon = 2.3522
)

// =============================================================================
// Windowing Defaults
// =============================================================================

const (
	// DefaultWindowSize is the tumbling window size over event time.
	// Override via config: window.size
	DefaultWindowSize = 60 * time.Second

	// DefaultAllowedLateness is how far behind the max observed event time
	// the watermark trails. Records older than their closed window at
	// arrival are dropped and counted.
	// Override via config: window.allowed_lateness
	DefaultAllowedLateness = 10 * time.Second

	// DefaultPercentileAccuracy is the DDSketch relative accuracy used when
	// velocity percentiles are enabled.
	// Override via config: window.percentiles.accuracy
	DefaultPercentileAccuracy = 0.01
)

// =============================================================================
// Spool / Ingest Defaults
// =============================================================================

const (
	// DefaultScanInterval is how often the ingest loop scans the spool
	// directory for newly arrived record files.
	// Override via config: ingest.scan_interval
	DefaultScanInterval = 1 * time.Second

	// DefaultCheckpointName is the cursor file written next to the spool
	// directory. It holds the name of the last consumed record file.
	DefaultCheckpointName = "ingest.checkpoint"

	// DefaultMaxBatchFiles caps how many spool files one micro-batch
	// consumes. Keeps a restart with a large backlog from stalling the
	// first checkpoint.
	// Override via config: ingest.max_batch_files
	DefaultMaxBatchFiles = 512
)

// =============================================================================
// Sink Defaults
// =============================================================================

const (
	// DefaultRecordsFile is the processed-records stream file name inside
	// the output directory.
	DefaultRecordsFile = "processed/records.jsonl"

	// DefaultStatsFile is the window-statistics stream file name inside the
	// output directory.
	DefaultStatsFile = "statistics/stats.jsonl"

	// DefaultParquetDir is the parquet archive directory for window stats,
	// inside the output directory.
	DefaultParquetDir = "statistics/parquet"

	// DefaultParquetRowsPerFile rotates parquet segments after this many
	// stats rows.
	// Override via config: output.parquet.rows_per_file
	DefaultParquetRowsPerFile = 4096
)

// =============================================================================
// Pipeline Defaults
// =============================================================================

const (
	// DefaultProgressInterval is how often the pipeline logs a progress line
	// (points processed, current rate).
	DefaultProgressInterval = 30 * time.Second

	// DefaultDrainTimeout is how long shutdown waits for the final ingest
	// scan and sink flush before abandoning.
	DefaultDrainTimeout = 30 * time.Second
)
