// Package telemetry defines the data units flowing through the pipeline:
// raw position samples from the source, enriched records written to the
// spool and the processed-records stream, and per-window statistics.
//
// All types are plain values with JSON tags matching the on-disk record
// format. Nothing in this package performs I/O.
package telemetry
