// Package window implements event-time tumbling windows with watermark
// driven close-and-emit semantics.
//
// State is an accumulator per open window (running count/sum/min/max/
// sum-of-squares per aggregated field) plus a monotonically non-decreasing
// watermark. A window is emitted exactly once, only after the watermark
// passes its end; records arriving for an already-closed window are dropped
// and counted.
package window

import (
	"math"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/xtxerr/orbitd/internal/telemetry"
)

// fieldAgg maintains running statistics for one aggregated field.
type fieldAgg struct {
	sum   float64
	min   float64
	max   float64
	sumSq float64
}

func newFieldAgg() fieldAgg {
	return fieldAgg{min: math.MaxFloat64, max: -math.MaxFloat64}
}

func (f *fieldAgg) add(v float64) {
	f.sum += v
	f.sumSq += v * v
	if v < f.min {
		f.min = v
	}
	if v > f.max {
		f.max = v
	}
}

func (f *fieldAgg) avg(n int64) float64 {
	if n == 0 {
		return 0
	}
	return f.sum / float64(n)
}

// stddev returns the sample standard deviation. A single observation has
// stddev 0.
func (f *fieldAgg) stddev(n int64) float64 {
	if n <= 1 {
		return 0
	}
	variance := (f.sumSq - f.sum*f.sum/float64(n)) / float64(n-1)
	if variance < 0 {
		// Floating-point cancellation on near-constant values.
		return 0
	}
	return math.Sqrt(variance)
}

// Accumulator maintains running statistics for a single open window.
type Accumulator struct {
	windowStart int64 // epoch seconds, inclusive
	windowEnd   int64 // epoch seconds, exclusive

	count     int64
	latitude  fieldAgg
	longitude fieldAgg
	velocity  fieldAgg

	// DDSketch over velocity (nil if percentiles disabled)
	sketch *ddsketch.DDSketch
}

// NewAccumulator creates an accumulator for [windowStart, windowEnd).
// accuracy > 0 enables DDSketch velocity percentiles.
func NewAccumulator(windowStart, windowEnd int64, accuracy float64) *Accumulator {
	acc := &Accumulator{
		windowStart: windowStart,
		windowEnd:   windowEnd,
		latitude:    newFieldAgg(),
		longitude:   newFieldAgg(),
		velocity:    newFieldAgg(),
	}

	if accuracy > 0 {
		sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
		if err == nil {
			acc.sketch = sketch
		}
	}

	return acc
}

// Add folds one record into the accumulator. The caller has already
// assigned the record to this window.
func (a *Accumulator) Add(rec telemetry.Record) {
	a.count++
	a.latitude.add(rec.Latitude)
	a.longitude.add(rec.Longitude)
	a.velocity.add(rec.VelocityKmS)

	if a.sketch != nil {
		a.sketch.Add(rec.VelocityKmS)
	}
}

// Count returns the number of records accumulated.
func (a *Accumulator) Count() int64 {
	return a.count
}

// IsEmpty returns true if no records have been accumulated.
func (a *Accumulator) IsEmpty() bool {
	return a.count == 0
}

// WindowStart returns the window start in epoch seconds.
func (a *Accumulator) WindowStart() int64 {
	return a.windowStart
}

// WindowEnd returns the window end in epoch seconds.
func (a *Accumulator) WindowEnd() int64 {
	return a.windowEnd
}

// Result finalizes the accumulator into WindowStats with all aggregates
// rounded to four decimals.
func (a *Accumulator) Result() telemetry.WindowStats {
	stats := telemetry.WindowStats{
		WindowStart: a.windowStart,
		WindowEnd:   a.windowEnd,
		DataPoints:  a.count,
	}

	if a.count > 0 {
		stats.AvgLatitude = round4(a.latitude.avg(a.count))
		stats.MinLatitude = round4(a.latitude.min)
		stats.MaxLatitude = round4(a.latitude.max)
		stats.StddevLatitude = round4(a.latitude.stddev(a.count))

		stats.AvgLongitude = round4(a.longitude.avg(a.count))
		stats.MinLongitude = round4(a.longitude.min)
		stats.MaxLongitude = round4(a.longitude.max)
		stats.StddevLongitude = round4(a.longitude.stddev(a.count))

		stats.AvgVelocity = round4(a.velocity.avg(a.count))
		stats.MinVelocity = round4(a.velocity.min)
		stats.MaxVelocity = round4(a.velocity.max)
		stats.StddevVelocity = round4(a.velocity.stddev(a.count))
	}

	if a.sketch != nil && a.count > 0 {
		p50, _ := a.sketch.GetValueAtQuantile(0.50)
		p90, _ := a.sketch.GetValueAtQuantile(0.90)
		p95, _ := a.sketch.GetValueAtQuantile(0.95)
		p99, _ := a.sketch.GetValueAtQuantile(0.99)
		stats.SetPercentiles(round4(p50), round4(p90), round4(p95), round4(p99))
	}

	return stats
}

// round4 rounds to four decimal places, half away from zero.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
