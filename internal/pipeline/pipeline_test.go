package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xtxerr/orbitd/internal/loader"
)

// positionServer serves the open-notify payloads with a distinct timestamp
// per request so every spooled record is new.
func positionServer(t *testing.T) *httptest.Server {
	t.Helper()

	var ts atomic.Int64
	ts.Store(1_756_000_000)

	mux := http.NewServeMux()
	mux.HandleFunc("/iss-now.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w,
			`{"message":"success","timestamp":%d,"iss_position":{"latitude":"10.0000","longitude":"20.0000"}}`,
			ts.Add(1))
	})
	mux.HandleFunc("/astros.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w,
			`{"message":"success","number":1,"people":[{"name":"Test Pilot","craft":"ISS"}]}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, srv *httptest.Server) *loader.Config {
	t.Helper()

	cfg := loader.DefaultConfig()
	cfg.Source.PositionURL = srv.URL + "/iss-now.json"
	cfg.Source.CrewURL = srv.URL + "/astros.json"
	cfg.Source.Timeout = loader.Duration(time.Second)
	cfg.Source.MaxRetries = 1
	cfg.Source.Interval = loader.Duration(time.Millisecond)
	cfg.Source.Duration = loader.Duration(100 * time.Millisecond)
	cfg.Ingest.ScanInterval = loader.Duration(time.Millisecond)
	cfg.Ingest.DrainTimeout = loader.Duration(5 * time.Second)
	cfg.Output.DataDir = t.TempDir()
	cfg.Output.Console = false
	cfg.Output.ProgressInterval = loader.Duration(time.Millisecond)

	if err := loader.Validate(cfg); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

// Drives a short real run with the progress loop ticking alongside the
// producer, then checks the summary counters agree end to end.
func TestPipeline_RunReportsConsistentCounts(t *testing.T) {
	srv := positionServer(t)

	p, err := New(testConfig(t, srv))
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	summary, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if summary.RecordsSpooled == 0 {
		t.Fatal("expected at least one spooled record")
	}
	if summary.SamplesFetched != summary.RecordsSpooled {
		t.Errorf("fetched %d but spooled %d", summary.SamplesFetched, summary.RecordsSpooled)
	}

	// Every timestamp is distinct, so the drain ingests the whole spool
	// with no duplicates.
	if summary.RecordsIngested != summary.RecordsSpooled {
		t.Errorf("spooled %d but ingested %d", summary.RecordsSpooled, summary.RecordsIngested)
	}
	if summary.Duplicates != 0 {
		t.Errorf("expected no duplicates, got %d", summary.Duplicates)
	}
	if summary.Malformed != 0 {
		t.Errorf("expected no malformed records, got %d", summary.Malformed)
	}
	if summary.FetchFailures != 0 {
		t.Errorf("expected no fetch failures, got %d", summary.FetchFailures)
	}
}
