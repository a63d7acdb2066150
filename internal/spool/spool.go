// Package spool implements the durable intermediate record store between
// the producer loop and the ingest loop: an append-only directory of
// one-JSON-file-per-record, with an ordered scan and a persistent cursor.
//
// Files become visible atomically (written to a temp name, then renamed),
// so a scanner never observes a partial record. File names sort in arrival
// order; the checkpoint cursor is the name of the last consumed file, which
// makes replay after restart bounded to the in-flight batch (at-least-once,
// made harmless by sink dedup).
package spool

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/xtxerr/orbitd/internal/errors"
	"github.com/xtxerr/orbitd/internal/telemetry"
)

const (
	recordSuffix = ".json"
	tempSuffix   = ".tmp"
)

// =============================================================================
// Writer
// =============================================================================

// WriterStats holds spool writer statistics.
type WriterStats struct {
	RecordsWritten atomic.Int64
	BytesWritten   atomic.Int64
	Errors         atomic.Int64
}

// Writer appends records to the spool directory, one file per record.
type Writer struct {
	mu  sync.Mutex
	dir string
	seq int64

	stats WriterStats
}

// NewWriter creates a spool writer, creating the directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrSpoolDirectory, err.Error())
	}
	return &Writer{dir: dir}, nil
}

// Write persists one enriched record. The file name embeds the event time
// and a per-writer sequence number, so names sort in production order.
func (w *Writer) Write(rec telemetry.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	payload, err := json.Marshal(&rec)
	if err != nil {
		w.stats.Errors.Add(1)
		return errors.Wrap(errors.ErrSpoolWrite, err.Error())
	}

	w.seq++
	name := fmt.Sprintf("iss_%012d_%06d%s", rec.Timestamp, w.seq, recordSuffix)
	final := filepath.Join(w.dir, name)
	tmp := final + tempSuffix

	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		w.stats.Errors.Add(1)
		return errors.Wrap(errors.ErrSpoolWrite, err.Error())
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		w.stats.Errors.Add(1)
		return errors.Wrap(errors.ErrSpoolWrite, err.Error())
	}

	w.stats.RecordsWritten.Add(1)
	w.stats.BytesWritten.Add(int64(len(payload)))
	return nil
}

// Stats returns a snapshot of writer statistics.
func (w *Writer) Stats() (records, bytes, errs int64) {
	return w.stats.RecordsWritten.Load(), w.stats.BytesWritten.Load(), w.stats.Errors.Load()
}

// Dir returns the spool directory.
func (w *Writer) Dir() string {
	return w.dir
}

// =============================================================================
// Scanner
// =============================================================================

// Entry is one spool file awaiting consumption.
type Entry struct {
	Name string // base name, the ordering and checkpoint key
	Path string
}

// Read returns the entry's payload.
func (e Entry) Read() ([]byte, error) {
	return os.ReadFile(e.Path)
}

// Scanner lists newly arrived spool files in arrival order, resuming after
// the checkpointed cursor.
type Scanner struct {
	mu sync.Mutex

	dir            string
	checkpointPath string
	cursor         string // last consumed file name, "" means from the start
	maxBatch       int

	scans     atomic.Int64
	delivered atomic.Int64
}

// NewScanner creates a scanner for dir, loading the cursor from
// checkpointPath if it exists.
func NewScanner(dir, checkpointPath string, maxBatch int) (*Scanner, error) {
	if maxBatch <= 0 {
		maxBatch = 512
	}

	s := &Scanner{
		dir:            dir,
		checkpointPath: checkpointPath,
		maxBatch:       maxBatch,
	}

	data, err := os.ReadFile(checkpointPath)
	switch {
	case err == nil:
		cursor := strings.TrimSpace(string(data))
		if strings.ContainsAny(cursor, "/\\\n") {
			return nil, errors.Wrapf(errors.ErrCheckpointCorrupt, "cursor %q", cursor)
		}
		s.cursor = cursor
	case os.IsNotExist(err):
		// First run, consume from the start.
	default:
		return nil, errors.Wrap(errors.ErrCheckpointCorrupt, err.Error())
	}

	return s, nil
}

// Scan returns up to maxBatch record files that arrived after the cursor,
// in name order. It does not advance the cursor; call Commit once the batch
// has been durably processed.
func (s *Scanner) Scan() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scans.Add(1)

	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSpoolDirectory, err.Error())
	}

	names := make([]string, 0, len(dirents))
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if !strings.HasSuffix(name, recordSuffix) {
			continue // temp files and strangers
		}
		if name <= s.cursor {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) > s.maxBatch {
		names = names[:s.maxBatch]
	}

	entries := make([]Entry, len(names))
	for i, name := range names {
		entries[i] = Entry{Name: name, Path: filepath.Join(s.dir, name)}
	}

	s.delivered.Add(int64(len(entries)))
	return entries, nil
}

// Commit durably records name as the last consumed file. Subsequent scans
// (including after restart) return only files sorting after it.
func (s *Scanner) Commit(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.checkpointPath + tempSuffix
	if err := os.WriteFile(tmp, []byte(name+"\n"), 0o644); err != nil {
		return errors.Wrap(errors.ErrSinkWrite, err.Error())
	}
	if err := os.Rename(tmp, s.checkpointPath); err != nil {
		os.Remove(tmp)
		return errors.Wrap(errors.ErrSinkWrite, err.Error())
	}

	s.cursor = name
	return nil
}

// Cursor returns the current cursor (last committed file name).
func (s *Scanner) Cursor() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
