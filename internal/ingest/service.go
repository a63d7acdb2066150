// Package ingest implements the consuming half of the pipeline: a
// micro-batch loop that scans the spool for new record files, routes each
// record through the durable sink, the console tail and the window
// manager, and advances the checkpoint only after the batch's durable
// writes succeeded.
//
// Delivery is at-least-once. A batch that fails mid-way is replayed from
// the checkpoint on the next scan; the durable sink deduplicates by
// record key, and only records it reports as new reach the window state,
// so replay never double-counts.
package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/xtxerr/orbitd/config"
	"github.com/xtxerr/orbitd/internal/errors"
	"github.com/xtxerr/orbitd/internal/logging"
	"github.com/xtxerr/orbitd/internal/sink"
	"github.com/xtxerr/orbitd/internal/spool"
	"github.com/xtxerr/orbitd/internal/telemetry"
	"github.com/xtxerr/orbitd/internal/window"
)

var log = logging.Component("ingest")

// Options holds ingest loop configuration.
type Options struct {
	// ScanInterval is the pause between spool scans when the previous scan
	// drained the directory.
	ScanInterval time.Duration

	// DrainTimeout bounds the final drain on shutdown.
	DrainTimeout time.Duration
}

// Components are the pipeline stages the ingest loop drives. Scanner,
// Windows and Durable are required; Console and Archive may be nil.
type Components struct {
	Scanner *spool.Scanner
	Windows *window.Manager
	Durable *sink.Durable
	Console *sink.Console
	Archive *sink.ParquetArchive
}

// Stats holds ingest loop counters.
type Stats struct {
	BatchesProcessed atomic.Int64
	RecordsIngested  atomic.Int64
	Malformed        atomic.Int64
	Duplicates       atomic.Int64
	WindowsWritten   atomic.Int64
	SinkErrors       atomic.Int64
	ScanErrors       atomic.Int64
}

// Service is the ingest micro-batch loop.
type Service struct {
	comp Components
	opts Options

	// Closed windows whose durable write has not succeeded yet. Kept
	// across batches so a sink outage never loses an emission; the stats
	// stream deduplicates by window start, so re-attempts are harmless.
	pendingStats []telemetry.WindowStats

	stats Stats
}

// New creates an ingest service over the given components.
func New(comp Components, opts Options) (*Service, error) {
	if comp.Scanner == nil || comp.Windows == nil || comp.Durable == nil {
		return nil, errors.Wrap(errors.ErrInvalidConfig, "ingest requires scanner, window manager and durable sink")
	}
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = config.DefaultScanInterval
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = config.DefaultDrainTimeout
	}
	return &Service{comp: comp, opts: opts}, nil
}

// Run scans the spool until ctx is cancelled, then drains: remaining
// spool files are consumed, open windows flushed, and the sinks synced.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.drain()
		case <-ticker.C:
		}

		// Keep consuming back-to-back while the spool has a backlog.
		for {
			n, err := s.ProcessBatch()
			if err != nil {
				// The checkpoint did not advance, so the next scan
				// replays the batch. Dedup makes the replay a no-op for
				// anything already written.
				log.Warn("batch failed, will retry", "error", err)
				break
			}
			if n == 0 {
				break
			}
			select {
			case <-ctx.Done():
				return s.drain()
			default:
			}
		}
	}
}

// ProcessBatch consumes one batch of spool files. It returns the number
// of files consumed. The checkpoint advances only when every durable
// write in the batch succeeded.
func (s *Service) ProcessBatch() (int, error) {
	entries, err := s.comp.Scanner.Scan()
	if err != nil {
		s.stats.ScanErrors.Add(1)
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	for _, entry := range entries {
		if err := s.consume(entry); err != nil {
			s.stats.SinkErrors.Add(1)
			return 0, errors.Wrapf(err, "consume %s", entry.Name)
		}
	}

	if err := s.flushPendingStats(); err != nil {
		s.stats.SinkErrors.Add(1)
		return 0, err
	}

	if err := s.comp.Durable.Sync(); err != nil {
		s.stats.SinkErrors.Add(1)
		return 0, err
	}

	last := entries[len(entries)-1].Name
	if err := s.comp.Scanner.Commit(last); err != nil {
		s.stats.SinkErrors.Add(1)
		return 0, err
	}

	s.stats.BatchesProcessed.Add(1)
	return len(entries), nil
}

// consume routes one spool file. Malformed files are counted and skipped;
// they must not wedge the checkpoint. Sink failures surface so the batch
// is retried.
func (s *Service) consume(entry spool.Entry) error {
	payload, err := entry.Read()
	if err != nil {
		return errors.Wrap(errors.ErrSpoolWrite, err.Error())
	}

	var rec telemetry.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		s.stats.Malformed.Add(1)
		log.Warn("malformed spool file skipped", "file", entry.Name, "error", err)
		return nil
	}
	if err := rec.Validate(); err != nil {
		s.stats.Malformed.Add(1)
		log.Warn("invalid record skipped", "file", entry.Name, "error", err)
		return nil
	}

	wasNew, err := s.comp.Durable.WriteRecord(&rec)
	if err != nil {
		return err
	}
	if !wasNew {
		// Replay of an already-written record: keep it out of the window
		// state or the batch would double-count.
		s.stats.Duplicates.Add(1)
		return nil
	}

	if s.comp.Console != nil {
		s.comp.Console.WriteRecord(&rec)
	}

	closed := s.comp.Windows.Process(rec)
	s.pendingStats = append(s.pendingStats, closed...)
	s.stats.RecordsIngested.Add(1)
	return nil
}

// flushPendingStats writes every emitted window to the durable stats
// stream and the parquet archive. Windows that fail to write stay
// pending for the next batch.
func (s *Service) flushPendingStats() error {
	for len(s.pendingStats) > 0 {
		ws := s.pendingStats[0]
		if err := s.comp.Durable.WriteStats(&ws); err != nil {
			return err
		}
		if s.comp.Archive != nil {
			if err := s.comp.Archive.WriteStats(&ws); err != nil {
				return err
			}
		}
		s.pendingStats = s.pendingStats[1:]
		s.stats.WindowsWritten.Add(1)
	}
	return nil
}

// drain consumes what is left in the spool, flushes every open window
// and syncs the sinks. Bound by DrainTimeout; on timeout whatever is
// still spooled survives for the next start.
func (s *Service) drain() error {
	deadline := time.Now().Add(s.opts.DrainTimeout)

	for time.Now().Before(deadline) {
		n, err := s.ProcessBatch()
		if err != nil {
			log.Warn("drain batch failed", "error", err)
			break
		}
		if n == 0 {
			break
		}
	}

	// Open windows will never see their watermark; flush them so a clean
	// stop loses nothing.
	flushed := s.comp.Windows.FlushAll()
	s.pendingStats = append(s.pendingStats, flushed...)
	if err := s.flushPendingStats(); err != nil {
		return errors.Wrap(err, "flush windows on drain")
	}

	if err := s.comp.Durable.Sync(); err != nil {
		return errors.Wrap(err, "sync on drain")
	}
	if s.comp.Archive != nil {
		if err := s.comp.Archive.Flush(); err != nil {
			return errors.Wrap(err, "flush archive on drain")
		}
	}

	log.Info("ingest drained",
		"records", s.stats.RecordsIngested.Load(),
		"windows", s.stats.WindowsWritten.Load(),
		"malformed", s.stats.Malformed.Load(),
		"duplicates", s.stats.Duplicates.Load())
	return nil
}

// Stats returns a snapshot of ingest counters.
func (s *Service) Stats() (batches, records, malformed, duplicates, windows int64) {
	return s.stats.BatchesProcessed.Load(),
		s.stats.RecordsIngested.Load(),
		s.stats.Malformed.Load(),
		s.stats.Duplicates.Load(),
		s.stats.WindowsWritten.Load()
}
