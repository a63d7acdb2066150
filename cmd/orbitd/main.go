// orbitd polls the ISS position API, enriches each sample, and runs the
// windowed aggregation pipeline over the spooled records.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xtxerr/orbitd/internal/loader"
	"github.com/xtxerr/orbitd/internal/logging"
	"github.com/xtxerr/orbitd/internal/pipeline"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	dataDir := flag.String("data-dir", "", "data directory (overrides config)")
	duration := flag.Duration("duration", 0, "run duration, 0s for unbounded (overrides config)")
	interval := flag.Duration("interval", 0, "poll interval (overrides config)")
	windowSize := flag.Duration("window", 0, "tumbling window size (overrides config)")
	lateness := flag.Duration("lateness", -1, "allowed lateness (overrides config)")
	logLevel := flag.String("log-level", "", "debug, info, warn or error (overrides config)")
	jsonLogs := flag.Bool("json-logs", false, "log in JSON format")
	flag.Parse()

	// Load config
	cfg, err := loader.Load(*cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg = loader.DefaultConfig()
		} else {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI overrides
	if *dataDir != "" {
		cfg.Output.DataDir = *dataDir
	}
	if isFlagSet("duration") {
		cfg.Source.Duration = loader.Duration(*duration)
	}
	if *interval > 0 {
		cfg.Source.Interval = loader.Duration(*interval)
	}
	if *windowSize > 0 {
		cfg.Window.Size = loader.Duration(*windowSize)
	}
	if *lateness >= 0 {
		cfg.Window.AllowedLateness = loader.Duration(*lateness)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *jsonLogs {
		cfg.Logging.JSON = true
	}

	if err := loader.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.Logging.Level, cfg.Logging.JSON)
	log := logging.Component("orbitd")

	log.Info("starting",
		"version", Version,
		"data_dir", cfg.Output.DataDir,
		"interval", cfg.Source.Interval.Duration().String(),
		"window", cfg.Window.Size.Duration().String(),
		"lateness", cfg.Window.AllowedLateness.Duration().String(),
		"duration", cfg.Source.Duration.Duration().String())

	p, err := pipeline.New(cfg)
	if err != nil {
		log.Error("pipeline setup failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := p.Run(ctx)
	if err != nil {
		log.Error("pipeline failed", "error", err)
	}

	if summary != nil {
		log.Info("run complete",
			"elapsed", summary.Elapsed.Round(time.Millisecond).String(),
			"samples_fetched", summary.SamplesFetched,
			"fetch_retries", summary.FetchRetries,
			"fetch_failures", summary.FetchFailures,
			"records_spooled", summary.RecordsSpooled,
			"records_ingested", summary.RecordsIngested,
			"windows_written", summary.WindowsWritten,
			"malformed", summary.Malformed,
			"duplicates", summary.Duplicates,
			"late_dropped", summary.LateDropped)
	}

	if err != nil {
		os.Exit(1)
	}
}

// isFlagSet reports whether the named flag was passed explicitly, so a
// zero value ("run forever") can be distinguished from the default.
func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
