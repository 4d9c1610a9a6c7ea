package capture

import (
	"strings"
	"testing"
	"time"
)

func TestMetricsSnapshot(t *testing.T) {
	subs := 2
	m := NewMetrics(func() int { return subs })

	m.RecordCapture(10 * time.Millisecond)
	m.RecordCapture(20 * time.Millisecond)
	m.RecordDropped(3)

	s := m.Snapshot()
	if s.FramesCaptured != 2 {
		t.Errorf("FramesCaptured = %d, want 2", s.FramesCaptured)
	}
	if s.FramesDropped != 3 {
		t.Errorf("FramesDropped = %d, want 3", s.FramesDropped)
	}
	if s.AvgCaptureTime != 15*time.Millisecond {
		t.Errorf("AvgCaptureTime = %v, want 15ms", s.AvgCaptureTime)
	}
	if s.ActiveSubscribers != 2 {
		t.Errorf("ActiveSubscribers = %d, want 2", s.ActiveSubscribers)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics(nil)
	m.RecordCapture(time.Millisecond)
	m.RecordDropped(1)
	m.Reset()

	s := m.Snapshot()
	if s.FramesCaptured != 0 || s.FramesDropped != 0 || s.TotalCaptureTime != 0 {
		t.Errorf("Snapshot after Reset = %+v, want zeroes", s)
	}
}

func TestMetricsStatsString(t *testing.T) {
	m := NewMetrics(func() int { return 1 })
	m.RecordCapture(2 * time.Millisecond)

	got := m.Stats()
	for _, want := range []string{"captured=1", "dropped=0", "subscribers=1"} {
		if !strings.Contains(got, want) {
			t.Errorf("Stats() = %q, missing %q", got, want)
		}
	}
}
