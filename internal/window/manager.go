package window

import (
	"sort"
	"sync"
	"time"

	"github.com/xtxerr/orbitd/internal/logging"
	"github.com/xtxerr/orbitd/internal/telemetry"
)

var log = logging.Component("window")

// Config holds windowing configuration.
type Config struct {
	// Size is the tumbling window size.
	Size time.Duration

	// AllowedLateness is how far the watermark trails the max observed
	// event time.
	AllowedLateness time.Duration

	// PercentileAccuracy enables DDSketch velocity percentiles when > 0.
	PercentileAccuracy float64
}

// Stats holds aggregation counters.
type Stats struct {
	RecordsProcessed int64
	LateDropped      int64
	WindowsEmitted   int64
	OpenWindows      int64
}

// Manager assigns enriched records to tumbling event-time windows and
// emits WindowStats exactly once per window, after the watermark passes
// the window end.
//
// Manager is safe for concurrent use, though the ingest loop is its single
// logical writer per micro-batch.
type Manager struct {
	mu sync.Mutex

	sizeSec     int64
	latenessSec int64
	accuracy    float64

	// watermark = max observed event time - allowed lateness.
	// Never moves backward. hasWatermark is false until the first record.
	watermark    int64
	hasWatermark bool
	maxSeen      int64

	// Open accumulators keyed by window start. Created on first record
	// assigned to the window, destroyed on emission.
	open map[int64]*Accumulator

	stats Stats
}

// NewManager creates a window manager. Size must be positive; lateness must
// be non-negative (validated by the config loader).
func NewManager(cfg Config) *Manager {
	return &Manager{
		sizeSec:     int64(cfg.Size / time.Second),
		latenessSec: int64(cfg.AllowedLateness / time.Second),
		accuracy:    cfg.PercentileAccuracy,
		open:        make(map[int64]*Accumulator),
	}
}

// Process folds one record into its window and returns any windows closed
// by the resulting watermark advance, in window-start order. Records whose
// window already closed are dropped and counted as late.
func (m *Manager) Process(rec telemetry.Record) []telemetry.WindowStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := rec.Timestamp
	windowStart := (t / m.sizeSec) * m.sizeSec

	// Advance the watermark; it never moves backward even when event times
	// regress.
	if t > m.maxSeen {
		m.maxSeen = t
	}
	if wm := m.maxSeen - m.latenessSec; !m.hasWatermark || wm > m.watermark {
		m.watermark = wm
		m.hasWatermark = true
	}

	emitted := m.emitClosedLocked()

	if windowStart+m.sizeSec <= m.watermark {
		// Late beyond tolerance: the window is provably closed.
		m.stats.LateDropped++
		log.Debug("late record dropped",
			"event_time", t, "window_start", windowStart, "watermark", m.watermark)
		return emitted
	}

	acc, ok := m.open[windowStart]
	if !ok {
		acc = NewAccumulator(windowStart, windowStart+m.sizeSec, m.accuracy)
		m.open[windowStart] = acc
	}
	acc.Add(rec)
	m.stats.RecordsProcessed++

	return emitted
}

// emitClosedLocked finalizes and removes every accumulator whose window end
// is at or before the watermark. Callers hold m.mu.
func (m *Manager) emitClosedLocked() []telemetry.WindowStats {
	if !m.hasWatermark {
		return nil
	}

	var closed []telemetry.WindowStats
	for start, acc := range m.open {
		if start+m.sizeSec <= m.watermark {
			closed = append(closed, acc.Result())
			delete(m.open, start)
		}
	}

	if len(closed) > 1 {
		sort.Slice(closed, func(i, j int) bool {
			return closed[i].WindowStart < closed[j].WindowStart
		})
	}

	m.stats.WindowsEmitted += int64(len(closed))
	for i := range closed {
		log.Info("window closed",
			"window_start", closed[i].WindowStart,
			"window_end", closed[i].WindowEnd,
			"data_points", closed[i].DataPoints,
			"watermark", m.watermark)
	}

	return closed
}

// FlushAll emits every open accumulator regardless of the watermark, in
// window-start order. Called on graceful shutdown so in-flight windows are
// never silently lost.
func (m *Manager) FlushAll() []telemetry.WindowStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var flushed []telemetry.WindowStats
	for start, acc := range m.open {
		flushed = append(flushed, acc.Result())
		delete(m.open, start)
	}

	sort.Slice(flushed, func(i, j int) bool {
		return flushed[i].WindowStart < flushed[j].WindowStart
	})

	m.stats.WindowsEmitted += int64(len(flushed))
	return flushed
}

// Watermark returns the current watermark and whether one is defined yet.
func (m *Manager) Watermark() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watermark, m.hasWatermark
}

// Stats returns a snapshot of aggregation counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.stats
	stats.OpenWindows = int64(len(m.open))
	return stats
}
