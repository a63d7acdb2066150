package spool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"github.com/xtxerr/orbitd/internal/telemetry"
)

func record(ts int64, lat float64) telemetry.Record {
	return telemetry.Record{
		PositionSample: telemetry.PositionSample{
			Latitude:   lat,
			Longitude:  2.0,
			Timestamp:  ts,
			FetchTime:  "2026-01-01T00:00:00Z",
			AltitudeKm: 408.0,
		},
		OrbitPhase:   telemetry.OrbitUnknown,
		HemisphereNS: telemetry.HemisphereNorth,
		HemisphereEW: telemetry.HemisphereEast,
	}
}

func TestWriteScanRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cp := filepath.Join(t.TempDir(), "cursor")

	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	for i := int64(0); i < 5; i++ {
		if err := w.Write(record(1000+i*10, float64(i))); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	s, err := NewScanner(dir, cp, 0)
	if err != nil {
		t.Fatalf("new scanner: %v", err)
	}

	entries, err := s.Scan()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}

	// Arrival order
	for i := 1; i < len(entries); i++ {
		if entries[i-1].Name >= entries[i].Name {
			t.Errorf("entries out of order: %s before %s", entries[i-1].Name, entries[i].Name)
		}
	}

	var rec telemetry.Record
	payload, err := entries[0].Read()
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	if err := json.Unmarshal(payload, &rec); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if rec.Timestamp != 1000 {
		t.Errorf("expected timestamp 1000, got %d", rec.Timestamp)
	}
}

func TestScanner_CommitAdvancesCursor(t *testing.T) {
	dir := t.TempDir()
	cp := filepath.Join(t.TempDir(), "cursor")

	w, _ := NewWriter(dir)
	for i := int64(0); i < 3; i++ {
		if err := w.Write(record(1000+i, 0)); err != nil {
			t.Fatal(err)
		}
	}

	s, err := NewScanner(dir, cp, 0)
	if err != nil {
		t.Fatal(err)
	}

	entries, _ := s.Scan()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	if err := s.Commit(entries[len(entries)-1].Name); err != nil {
		t.Fatalf("commit: %v", err)
	}

	entries, _ = s.Scan()
	if len(entries) != 0 {
		t.Errorf("expected no entries after commit, got %d", len(entries))
	}

	// New arrivals after the cursor are picked up.
	if err := w.Write(record(2000, 0)); err != nil {
		t.Fatal(err)
	}
	entries, _ = s.Scan()
	if len(entries) != 1 {
		t.Errorf("expected 1 new entry, got %d", len(entries))
	}
}

func TestScanner_RestartResumesAfterCursor(t *testing.T) {
	dir := t.TempDir()
	cp := filepath.Join(t.TempDir(), "cursor")

	w, _ := NewWriter(dir)
	for i := int64(0); i < 4; i++ {
		if err := w.Write(record(1000+i, 0)); err != nil {
			t.Fatal(err)
		}
	}

	s1, err := NewScanner(dir, cp, 2)
	if err != nil {
		t.Fatal(err)
	}
	batch, _ := s1.Scan()
	if len(batch) != 2 {
		t.Fatalf("expected batch of 2, got %d", len(batch))
	}
	if err := s1.Commit(batch[1].Name); err != nil {
		t.Fatal(err)
	}

	// Simulated restart: a fresh scanner loads the persisted cursor.
	s2, err := NewScanner(dir, cp, 0)
	if err != nil {
		t.Fatal(err)
	}
	rest, _ := s2.Scan()
	if len(rest) != 2 {
		t.Fatalf("expected remaining 2 entries after restart, got %d", len(rest))
	}
	if rest[0].Name <= batch[1].Name {
		t.Errorf("restart redelivered committed entry %s", rest[0].Name)
	}
}

func TestScanner_IgnoresTempFiles(t *testing.T) {
	dir := t.TempDir()
	cp := filepath.Join(t.TempDir(), "cursor")

	w, _ := NewWriter(dir)
	if err := w.Write(record(1000, 0)); err != nil {
		t.Fatal(err)
	}

	// A half-written record must be invisible.
	if err := os.WriteFile(filepath.Join(dir, "iss_partial.json.tmp"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, _ := NewScanner(dir, cp, 0)
	entries, err := s.Scan()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(entries))
	}
}

func TestScanner_CorruptCheckpoint(t *testing.T) {
	dir := t.TempDir()
	cp := filepath.Join(t.TempDir(), "cursor")

	if err := os.WriteFile(cp, []byte("../escape\nmore"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewScanner(dir, cp, 0); err == nil {
		t.Error("expected corrupt checkpoint error")
	}
}
