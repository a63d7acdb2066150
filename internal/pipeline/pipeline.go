// Package pipeline wires the full flow together: the producer loop that
// polls the position API, enriches samples and spools them, and the
// ingest loop that consumes the spool into the window manager and sinks.
//
// The two halves share nothing but the spool directory, so either side
// can restart without the other losing data.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/orbitd/internal/enrich"
	"github.com/xtxerr/orbitd/internal/errors"
	"github.com/xtxerr/orbitd/internal/ingest"
	"github.com/xtxerr/orbitd/internal/loader"
	"github.com/xtxerr/orbitd/internal/logging"
	"github.com/xtxerr/orbitd/internal/sink"
	"github.com/xtxerr/orbitd/internal/source"
	"github.com/xtxerr/orbitd/internal/spool"
	"github.com/xtxerr/orbitd/internal/telemetry"
	"github.com/xtxerr/orbitd/internal/window"
)

var log = logging.Component("pipeline")

// Summary is the end-of-run report.
type Summary struct {
	Elapsed time.Duration

	SamplesFetched  int64
	FetchRetries    int64
	FetchFailures   int64
	RecordsSpooled  int64
	RecordsIngested int64
	WindowsWritten  int64
	Malformed       int64
	Duplicates      int64
	LateDropped     int64
}

// Pipeline owns every stage and runs them under one errgroup.
type Pipeline struct {
	cfg *loader.Config

	src      source.Source
	client   *source.Client
	enricher *enrich.Enricher
	writer   *spool.Writer
	windows  *window.Manager
	durable  *sink.Durable
	console  *sink.Console
	archive  *sink.ParquetArchive
	ingestor *ingest.Service

	// Written by the producer goroutine, read by progressLoop.
	spooled atomic.Int64
}

// New builds a pipeline from a validated configuration.
func New(cfg *loader.Config) (*Pipeline, error) {
	client := source.NewClient(source.Options{
		PositionURL: cfg.Source.PositionURL,
		CrewURL:     cfg.Source.CrewURL,
		Timeout:     cfg.Source.Timeout.Duration(),
		MaxRetries:  cfg.Source.MaxRetries,
		AltitudeKm:  cfg.Source.AltitudeKm,
	})

	enricher := enrich.New(telemetry.Coordinate{
		Latitude:  cfg.Reference.Latitude,
		Longitude: cfg.Reference.Longitude,
	})

	writer, err := spool.NewWriter(cfg.SpoolDir())
	if err != nil {
		return nil, errors.Wrap(err, "create spool writer")
	}

	scanner, err := spool.NewScanner(cfg.SpoolDir(), cfg.CheckpointPath(), cfg.Ingest.MaxBatchFiles)
	if err != nil {
		return nil, errors.Wrap(err, "create spool scanner")
	}

	durable, err := sink.NewDurable(cfg.RecordsPath(), cfg.StatsPath())
	if err != nil {
		return nil, errors.Wrap(err, "open durable sink")
	}

	var console *sink.Console
	if cfg.Output.Console {
		console = sink.NewConsole(nil)
	}

	var archive *sink.ParquetArchive
	if cfg.Output.Parquet.Enabled {
		archive, err = sink.NewParquetArchive(cfg.ParquetDir(), cfg.Output.Parquet.RowsPerFile)
		if err != nil {
			durable.Close()
			return nil, errors.Wrap(err, "open parquet archive")
		}
	}

	accuracy := 0.0
	if cfg.Window.Percentiles.Enabled {
		accuracy = cfg.Window.Percentiles.Accuracy
	}
	windows := window.NewManager(window.Config{
		Size:               cfg.Window.Size.Duration(),
		AllowedLateness:    cfg.Window.AllowedLateness.Duration(),
		PercentileAccuracy: accuracy,
	})

	ingestor, err := ingest.New(ingest.Components{
		Scanner: scanner,
		Windows: windows,
		Durable: durable,
		Console: console,
		Archive: archive,
	}, ingest.Options{
		ScanInterval: cfg.Ingest.ScanInterval.Duration(),
		DrainTimeout: cfg.Ingest.DrainTimeout.Duration(),
	})
	if err != nil {
		durable.Close()
		return nil, err
	}

	return &Pipeline{
		cfg:      cfg,
		src:      client,
		client:   client,
		enricher: enricher,
		writer:   writer,
		windows:  windows,
		durable:  durable,
		console:  console,
		archive:  archive,
		ingestor: ingestor,
	}, nil
}

// Run executes the pipeline until ctx is cancelled or the configured run
// duration elapses, then drains and returns the summary.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	p.logCrew(ctx)

	prodCtx := ctx
	var prodCancel context.CancelFunc
	if d := p.cfg.Source.Duration.Duration(); d > 0 {
		prodCtx, prodCancel = context.WithTimeout(ctx, d)
	} else {
		prodCtx, prodCancel = context.WithCancel(ctx)
	}
	defer prodCancel()

	// The ingest loop outlives the producer: it keeps consuming until the
	// producer has stopped, then drains the spool.
	ingestCtx, ingestCancel := context.WithCancel(context.Background())
	defer ingestCancel()

	var g errgroup.Group

	g.Go(func() error {
		defer ingestCancel()
		return p.produce(prodCtx)
	})

	g.Go(func() error {
		return p.ingestor.Run(ingestCtx)
	})

	g.Go(func() error {
		p.progressLoop(ingestCtx)
		return nil
	})

	runErr := g.Wait()

	if err := p.durable.Close(); err != nil {
		log.Error("close durable sink", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	if p.archive != nil {
		if err := p.archive.Close(); err != nil {
			log.Error("close parquet archive", "error", err)
			if runErr == nil {
				runErr = err
			}
		}
	}

	summary := p.summarize(time.Since(start))
	return summary, runErr
}

// produce polls the position endpoint, enriches each sample against the
// previous one and spools the record. Fetch failures skip the cycle;
// spool failures are fatal since the durable path is broken.
func (p *Pipeline) produce(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Source.Interval.Duration())
	defer ticker.Stop()

	var prior *telemetry.PositionSample

	for {
		sample, err := p.src.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("producer stopping", "spooled", p.spooled.Load())
				return nil
			}
			log.Warn("poll cycle skipped", "error", err)
		} else {
			rec := p.enricher.Enrich(sample, prior)
			keep := sample
			prior = &keep

			if err := p.writer.Write(rec); err != nil {
				return errors.Wrap(err, "spool record")
			}
			p.spooled.Add(1)
		}

		select {
		case <-ctx.Done():
			log.Info("producer stopping", "spooled", p.spooled.Load())
			return nil
		case <-ticker.C:
		}
	}
}

// logCrew fetches the people-in-space roster once at startup. Purely
// informational; failure is logged and ignored.
func (p *Pipeline) logCrew(ctx context.Context) {
	crewCtx, cancel := context.WithTimeout(ctx, p.cfg.Source.Timeout.Duration())
	defer cancel()

	crew, err := p.client.FetchCrew(crewCtx)
	if err != nil {
		log.Warn("crew roster unavailable", "error", err)
		return
	}

	names := make([]string, 0, len(crew.People))
	for _, m := range crew.People {
		names = append(names, m.Name)
	}
	log.Info("people in space", "count", crew.Number, "names", names)
}

// progressLoop logs throughput counters until ctx is cancelled.
func (p *Pipeline) progressLoop(ctx context.Context) {
	interval := p.cfg.Output.ProgressInterval.Duration()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastIngested int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			attempts, successes, _, _ := p.client.Stats()
			_, ingested, _, _, windows := p.ingestor.Stats()
			rate := float64(ingested-lastIngested) / interval.Seconds()
			lastIngested = ingested
			log.Info("progress",
				"fetch_attempts", attempts,
				"fetch_successes", successes,
				"spooled", p.spooled.Load(),
				"ingested", ingested,
				"rate_per_sec", rate,
				"windows", windows)
		}
	}
}

func (p *Pipeline) summarize(elapsed time.Duration) *Summary {
	_, successes, retries, failures := p.client.Stats()
	_, ingested, malformed, duplicates, windows := p.ingestor.Stats()
	wstats := p.windows.Stats()

	return &Summary{
		Elapsed:         elapsed,
		SamplesFetched:  successes,
		FetchRetries:    retries,
		FetchFailures:   failures,
		RecordsSpooled:  p.spooled.Load(),
		RecordsIngested: ingested,
		WindowsWritten:  windows,
		Malformed:       malformed,
		Duplicates:      duplicates,
		LateDropped:     wstats.LateDropped,
	}
}
