package window

import (
	"testing"
	"time"

	"github.com/xtxerr/orbitd/internal/telemetry"
)

func newTestManager() *Manager {
	return NewManager(Config{
		Size:            60 * time.Second,
		AllowedLateness: 10 * time.Second,
	})
}

func processAll(m *Manager, times ...int64) []telemetry.WindowStats {
	var emitted []telemetry.WindowStats
	for _, t := range times {
		emitted = append(emitted, m.Process(rec(t, 10.0, 20.0, 1.0))...)
	}
	return emitted
}

// The core scenario: samples at 0,10,20,50,65 with size=60 and lateness=10.
// Window [0,60) closes only once a record with event time >= 70 arrives
// (watermark 70-10=60); it holds 4 points since t=65 belongs to [60,120).
func TestManager_CloseScenario(t *testing.T) {
	m := newTestManager()

	emitted := processAll(m, 0, 10, 20, 50, 65)
	if len(emitted) != 0 {
		t.Fatalf("no window may close before watermark reaches 60, got %d emissions", len(emitted))
	}

	wm, ok := m.Watermark()
	if !ok || wm != 55 {
		t.Fatalf("expected watermark=55 after t=65, got %d (defined=%v)", wm, ok)
	}

	emitted = processAll(m, 70)
	if len(emitted) != 1 {
		t.Fatalf("expected exactly one closed window, got %d", len(emitted))
	}

	w := emitted[0]
	if w.WindowStart != 0 || w.WindowEnd != 60 {
		t.Errorf("expected window [0,60), got [%d,%d)", w.WindowStart, w.WindowEnd)
	}
	if w.DataPoints != 4 {
		t.Errorf("expected data_points=4, got %d", w.DataPoints)
	}
}

func TestManager_WindowAssignmentBounds(t *testing.T) {
	m := newTestManager()

	// All records land in [60,120).
	emitted := processAll(m, 60, 61, 119)
	if len(emitted) != 0 {
		t.Fatal("nothing should close yet")
	}

	// Push watermark past 120.
	emitted = processAll(m, 130)
	if len(emitted) != 1 {
		t.Fatalf("expected one emission, got %d", len(emitted))
	}
	w := emitted[0]
	if w.WindowStart != 60 || w.WindowEnd != 120 {
		t.Errorf("expected [60,120), got [%d,%d)", w.WindowStart, w.WindowEnd)
	}
	if w.DataPoints != 3 {
		t.Errorf("expected 3 points, got %d", w.DataPoints)
	}
}

func TestManager_EmitAtMostOnce(t *testing.T) {
	m := newTestManager()

	processAll(m, 0, 10)
	first := processAll(m, 70)
	if len(first) != 1 {
		t.Fatalf("expected one emission, got %d", len(first))
	}

	// Same watermark advance again plus a late record for the closed
	// window: no re-emission, no resurrection.
	again := processAll(m, 71, 5, 72)
	for _, w := range again {
		if w.WindowStart == 0 {
			t.Error("window [0,60) emitted twice")
		}
	}

	stats := m.Stats()
	if stats.LateDropped != 1 {
		t.Errorf("expected 1 late drop (t=5), got %d", stats.LateDropped)
	}
}

func TestManager_LateRecordExcluded(t *testing.T) {
	m := newTestManager()

	processAll(m, 0, 10, 20)
	emitted := processAll(m, 70) // closes [0,60) with 3 points
	if len(emitted) != 1 || emitted[0].DataPoints != 3 {
		t.Fatalf("unexpected emission: %+v", emitted)
	}

	// t=30 arrives after its window closed: dropped, and never appears in
	// any later emission.
	late := processAll(m, 30)
	if len(late) != 0 {
		t.Fatal("late record must not trigger emission")
	}

	final := m.FlushAll()
	for _, w := range final {
		if w.WindowStart == 0 {
			t.Error("closed window resurrected by late record")
		}
	}

	if m.Stats().LateDropped != 1 {
		t.Errorf("expected 1 late drop, got %d", m.Stats().LateDropped)
	}
}

func TestManager_WatermarkNeverMovesBackward(t *testing.T) {
	m := newTestManager()

	processAll(m, 100)
	wm1, _ := m.Watermark()

	// Older (but not late) record must not regress the watermark.
	processAll(m, 95)
	wm2, _ := m.Watermark()

	if wm2 < wm1 {
		t.Errorf("watermark moved backward: %d -> %d", wm1, wm2)
	}
	if wm1 != 90 || wm2 != 90 {
		t.Errorf("expected watermark 90, got %d then %d", wm1, wm2)
	}
}

func TestManager_WithinLatenessAccepted(t *testing.T) {
	m := newTestManager()

	// maxSeen=65 -> watermark=55. Window [0,60) is not yet closed, so an
	// old record at t=58 still counts.
	processAll(m, 50, 65, 58)

	emitted := processAll(m, 70)
	if len(emitted) != 1 {
		t.Fatalf("expected one emission, got %d", len(emitted))
	}
	if emitted[0].DataPoints != 2 {
		t.Errorf("expected [0,60) to hold t=50 and t=58, got %d points", emitted[0].DataPoints)
	}
	if m.Stats().LateDropped != 0 {
		t.Errorf("no record was late, got %d drops", m.Stats().LateDropped)
	}
}

func TestManager_MultipleWindowsCloseInOrder(t *testing.T) {
	m := newTestManager()

	processAll(m, 0, 65, 125)
	// Jump far ahead: both [0,60) and [60,120) and [120,180) close.
	emitted := processAll(m, 500)

	if len(emitted) != 3 {
		t.Fatalf("expected 3 closed windows, got %d", len(emitted))
	}
	for i := 1; i < len(emitted); i++ {
		if emitted[i-1].WindowStart >= emitted[i].WindowStart {
			t.Error("emissions not in window-start order")
		}
	}
}

func TestManager_EmptyWindowsNeverEmitted(t *testing.T) {
	m := newTestManager()

	// Records in [0,60) and [300,360); the gap windows have no
	// accumulator and must not appear.
	processAll(m, 10, 310)
	emitted := processAll(m, 500)

	if len(emitted) != 2 {
		t.Fatalf("expected 2 emissions, got %d", len(emitted))
	}
	for _, w := range emitted {
		if w.DataPoints < 1 {
			t.Errorf("emitted window with %d points", w.DataPoints)
		}
	}
}

func TestManager_FlushAll(t *testing.T) {
	m := newTestManager()

	processAll(m, 10, 70, 130)
	flushed := m.FlushAll()

	// All three open windows flushed on shutdown, none lost.
	if len(flushed) != 3 {
		t.Fatalf("expected 3 flushed windows, got %d", len(flushed))
	}
	if m.Stats().OpenWindows != 0 {
		t.Errorf("expected no open windows after flush, got %d", m.Stats().OpenWindows)
	}

	// Flush is terminal for those windows.
	if again := m.FlushAll(); len(again) != 0 {
		t.Errorf("second flush re-emitted %d windows", len(again))
	}
}

func TestManager_NoEmissionBeforeFirstRecord(t *testing.T) {
	m := newTestManager()

	if _, ok := m.Watermark(); ok {
		t.Error("watermark defined before any record")
	}
	if flushed := m.FlushAll(); len(flushed) != 0 {
		t.Errorf("flush of empty manager emitted %d windows", len(flushed))
	}
}
