package telemetry

import (
	"strconv"
	"time"
)

// WindowStats holds the aggregated statistics for one closed tumbling
// window [WindowStart, WindowEnd) over event time. Emitted exactly once,
// after the watermark passes WindowEnd. All aggregates are rounded to four
// decimal places; stddev is the sample standard deviation, defined as 0 for
// a single-point window. Empty windows are never emitted.
type WindowStats struct {
	WindowStart int64 `json:"window_start"` // epoch seconds, inclusive
	WindowEnd   int64 `json:"window_end"`   // epoch seconds, exclusive
	DataPoints  int64 `json:"data_points"`

	AvgLatitude    float64 `json:"avg_latitude"`
	MinLatitude    float64 `json:"min_latitude"`
	MaxLatitude    float64 `json:"max_latitude"`
	StddevLatitude float64 `json:"stddev_latitude"`

	AvgLongitude    float64 `json:"avg_longitude"`
	MinLongitude    float64 `json:"min_longitude"`
	MaxLongitude    float64 `json:"max_longitude"`
	StddevLongitude float64 `json:"stddev_longitude"`

	AvgVelocity    float64 `json:"avg_velocity"`
	MinVelocity    float64 `json:"min_velocity"`
	MaxVelocity    float64 `json:"max_velocity"`
	StddevVelocity float64 `json:"stddev_velocity"`

	// Velocity percentiles, present only when the percentile feature is
	// enabled.
	P50Velocity *float64 `json:"p50_velocity,omitempty"`
	P90Velocity *float64 `json:"p90_velocity,omitempty"`
	P95Velocity *float64 `json:"p95_velocity,omitempty"`
	P99Velocity *float64 `json:"p99_velocity,omitempty"`
}

// Key returns the dedup key for the statistics stream: one emission per
// window start.
func (w *WindowStats) Key() string {
	return strconv.FormatInt(w.WindowStart, 10)
}

// StartTime returns the window start as a time.Time.
func (w *WindowStats) StartTime() time.Time {
	return time.Unix(w.WindowStart, 0).UTC()
}

// EndTime returns the window end as a time.Time.
func (w *WindowStats) EndTime() time.Time {
	return time.Unix(w.WindowEnd, 0).UTC()
}

// Duration returns the window size.
func (w *WindowStats) Duration() time.Duration {
	return time.Duration(w.WindowEnd-w.WindowStart) * time.Second
}

// HasPercentiles returns true if percentile data is available.
func (w *WindowStats) HasPercentiles() bool {
	return w.P50Velocity != nil
}

// SetPercentiles sets all velocity percentile values.
func (w *WindowStats) SetPercentiles(p50, p90, p95, p99 float64) {
	w.P50Velocity = &p50
	w.P90Velocity = &p90
	w.P95Velocity = &p95
	w.P99Velocity = &p99
}
