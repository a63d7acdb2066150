// orbitq queries the parquet archive of window statistics written by
// orbitd, using DuckDB.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/xtxerr/orbitd/config"
	"github.com/xtxerr/orbitd/internal/query"
)

func main() {
	dataDir := flag.String("data-dir", "./data", "orbitd data directory")
	parquetDir := flag.String("parquet-dir", "", "parquet archive directory (overrides data-dir)")
	from := flag.String("from", "", "range start (RFC3339 or unix seconds)")
	to := flag.String("to", "", "range end (RFC3339 or unix seconds)")
	limit := flag.Int("limit", 0, "max windows to print (0 = all)")
	summary := flag.Bool("summary", false, "print an archive-wide summary instead of rows")
	sqlQuery := flag.String("sql", "", "raw SQL to run against the archive")
	asJSON := flag.Bool("json", false, "print rows as JSON lines")
	flag.Parse()

	dir := *parquetDir
	if dir == "" {
		dir = filepath.Join(*dataDir, config.DefaultParquetDir)
	}

	svc, err := query.New(dir)
	if err != nil {
		fatalf("open query service: %v", err)
	}
	defer svc.Close()

	ctx := context.Background()

	switch {
	case *sqlQuery != "":
		runSQL(ctx, svc, *sqlQuery)
	case *summary:
		runSummary(ctx, svc)
	default:
		runRange(ctx, svc, *from, *to, *limit, *asJSON)
	}
}

func runSQL(ctx context.Context, svc *query.Service, q string) {
	rows, err := svc.ExecuteSQL(ctx, q)
	if err != nil {
		fatalf("query: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			fatalf("encode: %v", err)
		}
	}
}

func runSummary(ctx context.Context, svc *query.Service) {
	s, err := svc.Summarize(ctx)
	if err != nil {
		fatalf("summarize: %v", err)
	}
	if s.Windows == 0 {
		fmt.Println("archive is empty")
		return
	}

	fmt.Printf("windows:       %d\n", s.Windows)
	fmt.Printf("data points:   %d\n", s.DataPoints)
	fmt.Printf("first window:  %s\n", time.Unix(s.FirstWindow, 0).UTC().Format(time.RFC3339))
	fmt.Printf("last window:   %s\n", time.Unix(s.LastWindow, 0).UTC().Format(time.RFC3339))
	fmt.Printf("avg velocity:  %.4f km/s\n", s.AvgVelocity)
	fmt.Printf("velocity span: %.4f .. %.4f km/s\n", s.MinVelocity, s.MaxVelocity)
	fmt.Printf("avg position:  (%.4f, %.4f)\n", s.AvgLatitude, s.AvgLongitude)
}

func runRange(ctx context.Context, svc *query.Service, from, to string, limit int, asJSON bool) {
	q := query.RangeQuery{
		Start: time.Unix(0, 0),
		End:   time.Now().Add(24 * time.Hour),
		Limit: limit,
	}
	if from != "" {
		q.Start = parseTime(from)
	}
	if to != "" {
		q.End = parseTime(to)
	}

	windows, err := svc.QueryRange(ctx, q)
	if err != nil {
		fatalf("query: %v", err)
	}
	if len(windows) == 0 {
		fmt.Println("no windows in range")
		return
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		for i := range windows {
			if err := enc.Encode(&windows[i]); err != nil {
				fatalf("encode: %v", err)
			}
		}
		return
	}

	fmt.Printf("%-20s %6s %10s %10s %10s %10s\n",
		"window", "points", "avg_vel", "min_vel", "max_vel", "stddev")
	for i := range windows {
		w := &windows[i]
		fmt.Printf("%-20s %6d %10.4f %10.4f %10.4f %10.4f\n",
			w.StartTime().UTC().Format("2006-01-02 15:04:05"),
			w.DataPoints, w.AvgVelocity, w.MinVelocity, w.MaxVelocity, w.StddevVelocity)
	}
}

// parseTime accepts RFC3339 or unix seconds.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	var unix int64
	if _, err := fmt.Sscanf(s, "%d", &unix); err == nil {
		return time.Unix(unix, 0)
	}
	fatalf("cannot parse time %q (want RFC3339 or unix seconds)", s)
	return time.Time{}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
