// Package sink implements the pipeline outputs: a durable append-only
// writer for enriched records and window statistics (idempotent under
// redelivery), a best-effort console tail for human monitoring, and a
// parquet archive of window statistics for offline queries.
package sink

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/xtxerr/orbitd/internal/errors"
	"github.com/xtxerr/orbitd/internal/logging"
	"github.com/xtxerr/orbitd/internal/telemetry"
)

var durableLog = logging.Component("sink")

// appendFile is an append-only JSONL file with a per-key dedup set. The
// set is rebuilt from the existing file on open, so redelivered units are
// ignored across restarts and the stream stays duplicate-free by
// construction.
type appendFile struct {
	mu   sync.Mutex
	path string
	file *os.File
	seen map[string]struct{}

	written    atomic.Int64
	duplicates atomic.Int64
}

// openAppendFile opens (or creates) path and rebuilds the dedup set by
// applying loadKey to every existing line. Lines that fail to yield a key
// are skipped; they cannot collide with future writes.
func openAppendFile(path string, loadKey func([]byte) (string, error)) (*appendFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrSinkWrite, err.Error())
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrap(errors.ErrSinkWrite, err.Error())
	}

	a := &appendFile{
		path: path,
		file: f,
		seen: make(map[string]struct{}),
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		key, err := loadKey(line)
		if err != nil {
			durableLog.Warn("unreadable line in existing sink file", "path", path, "error", err)
			continue
		}
		a.seen[key] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		f.Close()
		return nil, errors.Wrap(errors.ErrSinkWrite, err.Error())
	}

	return a, nil
}

// append writes payload as one line unless key was already written.
// Returns true if the line was appended, false for a duplicate.
func (a *appendFile) append(key string, payload []byte) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return false, errors.ErrSinkClosed
	}

	if _, dup := a.seen[key]; dup {
		a.duplicates.Add(1)
		return false, nil
	}

	if _, err := a.file.Write(append(payload, '\n')); err != nil {
		return false, errors.Wrap(errors.ErrSinkWrite, err.Error())
	}

	a.seen[key] = struct{}{}
	a.written.Add(1)
	return true, nil
}

func (a *appendFile) sync() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	return a.file.Sync()
}

func (a *appendFile) close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Sync()
	if cerr := a.file.Close(); err == nil {
		err = cerr
	}
	a.file = nil
	return err
}

// Durable writes the two logical output streams: processed records and
// window statistics, one JSON object per line, partitioned by stream.
// Writes are idempotent under retry: the dedup key is the record's event
// time and the window's start, respectively.
type Durable struct {
	records *appendFile
	stats   *appendFile
}

// NewDurable opens the durable sink over the two stream files.
func NewDurable(recordsPath, statsPath string) (*Durable, error) {
	records, err := openAppendFile(recordsPath, func(line []byte) (string, error) {
		var rec telemetry.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return "", err
		}
		return rec.Key(), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "open records stream")
	}

	stats, err := openAppendFile(statsPath, func(line []byte) (string, error) {
		var ws telemetry.WindowStats
		if err := json.Unmarshal(line, &ws); err != nil {
			return "", err
		}
		return ws.Key(), nil
	})
	if err != nil {
		records.close()
		return nil, errors.Wrap(err, "open statistics stream")
	}

	return &Durable{records: records, stats: stats}, nil
}

// WriteRecord appends one enriched record to the processed stream.
// Redelivery of an already-written record is a no-op; the return value
// reports whether the record was new, so the ingest loop can keep replayed
// records out of the window state.
func (d *Durable) WriteRecord(rec *telemetry.Record) (bool, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return false, errors.Wrap(errors.ErrSinkWrite, err.Error())
	}
	return d.records.append(rec.Key(), payload)
}

// WriteStats appends one closed window to the statistics stream.
// A window start already present is a no-op, which keeps emission
// effectively-once even if the ingest loop replays a batch.
func (d *Durable) WriteStats(stats *telemetry.WindowStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return errors.Wrap(errors.ErrSinkWrite, err.Error())
	}
	_, err = d.stats.append(stats.Key(), payload)
	return err
}

// Sync flushes both streams to stable storage.
func (d *Durable) Sync() error {
	if err := d.records.sync(); err != nil {
		return err
	}
	return d.stats.sync()
}

// Close syncs and closes both streams.
func (d *Durable) Close() error {
	err := d.records.close()
	if serr := d.stats.close(); err == nil {
		err = serr
	}
	return err
}

// Stats returns written and deduplicated counts per stream.
func (d *Durable) Stats() (recordsWritten, recordDups, statsWritten, statsDups int64) {
	return d.records.written.Load(), d.records.duplicates.Load(),
		d.stats.written.Load(), d.stats.duplicates.Load()
}
