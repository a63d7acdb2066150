package query

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newService(t *testing.T, dir string) *Service {
	t.Helper()
	svc, err := New(dir)
	if err != nil {
		t.Fatalf("new query service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestQueryRange_EmptyArchive(t *testing.T) {
	svc := newService(t, t.TempDir())

	results, err := svc.QueryRange(context.Background(), RangeQuery{
		Start: time.Unix(0, 0),
		End:   time.Now(),
	})
	if err != nil {
		t.Fatalf("empty archive must not error: %v", err)
	}
	if results != nil {
		t.Errorf("expected no rows, got %d", len(results))
	}

	sum, err := svc.Summarize(context.Background())
	if err != nil {
		t.Fatalf("empty archive must not error: %v", err)
	}
	if sum.Windows != 0 {
		t.Errorf("expected zero windows, got %d", sum.Windows)
	}

	if got := svc.Stats().Errors; got != 0 {
		t.Errorf("empty archive counted as error: %d", got)
	}
}

func TestQueryRange_SurfacesCorruptSegment(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "stats_000001.parquet")
	if err := os.WriteFile(bad, []byte("not a parquet file"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := newService(t, dir)

	if _, err := svc.QueryRange(context.Background(), RangeQuery{
		Start: time.Unix(0, 0),
		End:   time.Now(),
	}); err == nil {
		t.Fatal("expected an error for a corrupt segment")
	}

	if got := svc.Stats().Errors; got != 1 {
		t.Errorf("expected 1 error counted, got %d", got)
	}
}

func TestExecuteSQL(t *testing.T) {
	svc := newService(t, t.TempDir())

	rows, err := svc.ExecuteSQL(context.Background(), "SELECT 42 AS answer")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if _, ok := rows[0]["answer"]; !ok {
		t.Errorf("missing answer column: %v", rows[0])
	}

	if _, err := svc.ExecuteSQL(context.Background(), "SELECT * FROM no_such_table"); err == nil {
		t.Error("expected an error for a bad query")
	}
}
