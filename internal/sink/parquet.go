package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/parquet-go/parquet-go"

	"github.com/xtxerr/orbitd/internal/errors"
	"github.com/xtxerr/orbitd/internal/telemetry"
)

// StatsRow is a window-statistics row in Parquet format.
type StatsRow struct {
	WindowStart int64 `parquet:"window_start"`
	WindowEnd   int64 `parquet:"window_end"`
	DataPoints  int64 `parquet:"data_points"`

	AvgLatitude    float64 `parquet:"avg_latitude"`
	MinLatitude    float64 `parquet:"min_latitude"`
	MaxLatitude    float64 `parquet:"max_latitude"`
	StddevLatitude float64 `parquet:"stddev_latitude"`

	AvgLongitude    float64 `parquet:"avg_longitude"`
	MinLongitude    float64 `parquet:"min_longitude"`
	MaxLongitude    float64 `parquet:"max_longitude"`
	StddevLongitude float64 `parquet:"stddev_longitude"`

	AvgVelocity    float64 `parquet:"avg_velocity"`
	MinVelocity    float64 `parquet:"min_velocity"`
	MaxVelocity    float64 `parquet:"max_velocity"`
	StddevVelocity float64 `parquet:"stddev_velocity"`

	P50Velocity float64 `parquet:"p50_velocity,optional"`
	P90Velocity float64 `parquet:"p90_velocity,optional"`
	P95Velocity float64 `parquet:"p95_velocity,optional"`
	P99Velocity float64 `parquet:"p99_velocity,optional"`
}

// StatsToRow converts WindowStats to a StatsRow.
func StatsToRow(w *telemetry.WindowStats) StatsRow {
	row := StatsRow{
		WindowStart: w.WindowStart,
		WindowEnd:   w.WindowEnd,
		DataPoints:  w.DataPoints,

		AvgLatitude:    w.AvgLatitude,
		MinLatitude:    w.MinLatitude,
		MaxLatitude:    w.MaxLatitude,
		StddevLatitude: w.StddevLatitude,

		AvgLongitude:    w.AvgLongitude,
		MinLongitude:    w.MinLongitude,
		MaxLongitude:    w.MaxLongitude,
		StddevLongitude: w.StddevLongitude,

		AvgVelocity:    w.AvgVelocity,
		MinVelocity:    w.MinVelocity,
		MaxVelocity:    w.MaxVelocity,
		StddevVelocity: w.StddevVelocity,
	}

	if w.P50Velocity != nil {
		row.P50Velocity = *w.P50Velocity
	}
	if w.P90Velocity != nil {
		row.P90Velocity = *w.P90Velocity
	}
	if w.P95Velocity != nil {
		row.P95Velocity = *w.P95Velocity
	}
	if w.P99Velocity != nil {
		row.P99Velocity = *w.P99Velocity
	}

	return row
}

// ParquetArchive writes window statistics to zstd-compressed parquet
// segments, rotated by row count. Rows buffer in memory until a segment
// fills or Flush is called; each segment is written whole, so a crash
// loses at most the unflushed buffer (the JSONL stream remains the
// durable source of truth).
type ParquetArchive struct {
	mu sync.Mutex

	dir         string
	rowsPerFile int
	seq         int64

	buf []StatsRow

	segments    int64
	rowsWritten int64
}

// NewParquetArchive creates the archive directory and returns a writer.
func NewParquetArchive(dir string, rowsPerFile int) (*ParquetArchive, error) {
	if rowsPerFile <= 0 {
		rowsPerFile = 4096
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrSinkWrite, err.Error())
	}
	return &ParquetArchive{
		dir:         dir,
		rowsPerFile: rowsPerFile,
		buf:         make([]StatsRow, 0, rowsPerFile),
	}, nil
}

// WriteStats buffers one closed window, rotating a segment out when full.
func (p *ParquetArchive) WriteStats(stats *telemetry.WindowStats) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = append(p.buf, StatsToRow(stats))
	if len(p.buf) >= p.rowsPerFile {
		return p.flushLocked()
	}
	return nil
}

// Flush writes any buffered rows as a segment.
func (p *ParquetArchive) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked()
}

func (p *ParquetArchive) flushLocked() error {
	if len(p.buf) == 0 {
		return nil
	}

	p.seq++
	path := filepath.Join(p.dir, fmt.Sprintf("stats_%06d.parquet", p.seq))

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrSinkWrite, err.Error())
	}

	writer := parquet.NewGenericWriter[StatsRow](f, parquet.Compression(&parquet.Zstd))

	n, err := writer.Write(p.buf)
	if err != nil {
		writer.Close()
		f.Close()
		return errors.Wrap(errors.ErrSinkWrite, err.Error())
	}
	if err := writer.Close(); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrSinkWrite, err.Error())
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.ErrSinkWrite, err.Error())
	}

	p.segments++
	p.rowsWritten += int64(n)
	p.buf = p.buf[:0]
	return nil
}

// Close flushes remaining rows.
func (p *ParquetArchive) Close() error {
	return p.Flush()
}

// Stats returns segment and row counts.
func (p *ParquetArchive) Stats() (segments, rows int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.segments, p.rowsWritten
}

// Dir returns the archive directory.
func (p *ParquetArchive) Dir() string {
	return p.dir
}
