// Package query provides read access to the archived window statistics.
// It uses DuckDB to query the parquet segments written by the stats
// archive, so closed windows can be inspected with SQL after (or during)
// a pipeline run.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/xtxerr/orbitd/internal/telemetry"
)

// Service queries the parquet stats archive.
type Service struct {
	mu sync.RWMutex

	db         *sql.DB
	parquetDir string

	stats Stats
}

// Stats holds query statistics.
type Stats struct {
	QueriesExecuted int64
	RowsReturned    int64
	Errors          int64
}

// RangeQuery selects windows whose span falls inside [Start, End].
type RangeQuery struct {
	Start time.Time
	End   time.Time
	Limit int
}

// Summary aggregates across every window in the archive.
type Summary struct {
	Windows      int64
	DataPoints   int64
	FirstWindow  int64
	LastWindow   int64
	AvgVelocity  float64
	MinVelocity  float64
	MaxVelocity  float64
	AvgLatitude  float64
	AvgLongitude float64
}

// New creates a query service over the parquet archive directory.
func New(parquetDir string) (*Service, error) {
	// In-memory DuckDB instance; the data lives in the parquet files.
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	return &Service{
		db:         db,
		parquetDir: parquetDir,
	}, nil
}

// Close closes the query service.
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Service) pattern() string {
	return filepath.Join(s.parquetDir, "*.parquet")
}

// hasArchive reports whether any parquet segments exist yet. read_parquet
// fails on a glob with no matches, so an empty archive is checked up front
// and treated as zero rows rather than an error.
func (s *Service) hasArchive() bool {
	matches, err := filepath.Glob(s.pattern())
	return err == nil && len(matches) > 0
}

// QueryRange returns archived windows inside the given time range, in
// window-start order.
func (s *Service) QueryRange(ctx context.Context, q RangeQuery) ([]telemetry.WindowStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasArchive() {
		return nil, nil
	}

	query := `
		SELECT
			window_start, window_end, data_points,
			avg_latitude, min_latitude, max_latitude, stddev_latitude,
			avg_longitude, min_longitude, max_longitude, stddev_longitude,
			avg_velocity, min_velocity, max_velocity, stddev_velocity,
			p50_velocity, p90_velocity, p95_velocity, p99_velocity
		FROM read_parquet($1)
		WHERE window_start >= $2
		  AND window_end <= $3
		ORDER BY window_start
	`

	rows, err := s.db.QueryContext(ctx, query,
		s.pattern(),
		q.Start.Unix(),
		q.End.Unix(),
	)
	if err != nil {
		s.stats.Errors++
		return nil, fmt.Errorf("query range: %w", err)
	}
	defer rows.Close()

	results, err := s.scanWindows(rows)
	if err != nil {
		s.stats.Errors++
		return nil, err
	}

	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}

	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(len(results))
	return results, nil
}

// scanWindows scans rows into WindowStats.
func (s *Service) scanWindows(rows *sql.Rows) ([]telemetry.WindowStats, error) {
	var results []telemetry.WindowStats

	for rows.Next() {
		var w telemetry.WindowStats
		var p50, p90, p95, p99 sql.NullFloat64

		err := rows.Scan(
			&w.WindowStart, &w.WindowEnd, &w.DataPoints,
			&w.AvgLatitude, &w.MinLatitude, &w.MaxLatitude, &w.StddevLatitude,
			&w.AvgLongitude, &w.MinLongitude, &w.MaxLongitude, &w.StddevLongitude,
			&w.AvgVelocity, &w.MinVelocity, &w.MaxVelocity, &w.StddevVelocity,
			&p50, &p90, &p95, &p99,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		if p50.Valid {
			w.SetPercentiles(p50.Float64, p90.Float64, p95.Float64, p99.Float64)
		}

		results = append(results, w)
	}

	return results, rows.Err()
}

// Summarize aggregates across the whole archive.
func (s *Service) Summarize(ctx context.Context) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasArchive() {
		return &Summary{}, nil
	}

	query := `
		SELECT
			count(*),
			coalesce(sum(data_points), 0),
			coalesce(min(window_start), 0),
			coalesce(max(window_start), 0),
			coalesce(avg(avg_velocity), 0),
			coalesce(min(min_velocity), 0),
			coalesce(max(max_velocity), 0),
			coalesce(avg(avg_latitude), 0),
			coalesce(avg(avg_longitude), 0)
		FROM read_parquet($1)
	`

	var sum Summary
	err := s.db.QueryRowContext(ctx, query, s.pattern()).Scan(
		&sum.Windows, &sum.DataPoints,
		&sum.FirstWindow, &sum.LastWindow,
		&sum.AvgVelocity, &sum.MinVelocity, &sum.MaxVelocity,
		&sum.AvgLatitude, &sum.AvgLongitude,
	)
	if err != nil {
		s.stats.Errors++
		return nil, fmt.Errorf("summarize: %w", err)
	}

	s.stats.QueriesExecuted++
	s.stats.RowsReturned++
	return &sum, nil
}

// ExecuteSQL executes a raw SQL query. The archive is reachable through
// read_parquet over ArchivePattern.
func (s *Service) ExecuteSQL(ctx context.Context, query string) ([]map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.stats.Errors++
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}

	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(len(results))

	return results, rows.Err()
}

// ArchivePattern returns the glob DuckDB uses to find the archive.
func (s *Service) ArchivePattern() string {
	return s.pattern()
}

// Stats returns query statistics.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
