package sink

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/xtxerr/orbitd/internal/logging"
	"github.com/xtxerr/orbitd/internal/telemetry"
)

var consoleLog = logging.Component("console")

// Console is the best-effort, order-preserving human-readable tail of
// enriched records. Write failures are counted and logged once; they never
// propagate upstream or affect the durable sink.
type Console struct {
	mu sync.Mutex
	w  io.Writer

	written  atomic.Int64
	failures atomic.Int64
	warned   atomic.Bool
}

// NewConsole creates a console sink. A nil writer defaults to stdout.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w}
}

// WriteRecord prints one enriched record. Always returns nil.
func (c *Console) WriteRecord(rec *telemetry.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintf(c.w,
		"%s | pos=(%9.4f, %9.4f) | vel=%7.4f km/s | ref=%9.2f km | %-10s | %s/%s\n",
		rec.EventTime().Format("2006-01-02 15:04:05"),
		rec.Latitude, rec.Longitude,
		rec.VelocityKmS, rec.DistanceToRefKm,
		rec.OrbitPhase, rec.HemisphereNS, rec.HemisphereEW)
	if err != nil {
		c.failures.Add(1)
		if c.warned.CompareAndSwap(false, true) {
			consoleLog.Warn("console tail write failed, continuing", "error", err)
		}
		return nil
	}

	c.written.Add(1)
	return nil
}

// Stats returns written and failed line counts.
func (c *Console) Stats() (written, failures int64) {
	return c.written.Load(), c.failures.Load()
}
