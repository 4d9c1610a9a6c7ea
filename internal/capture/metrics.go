package capture

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Metrics tracks capture throughput for one orchestrator instance.
// Counters are monotonic until Reset.
type Metrics struct {
	framesCaptured   atomic.Uint64
	framesDropped    atomic.Uint64
	totalCaptureTime atomic.Int64 // nanoseconds
	subscribers      func() int
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	FramesCaptured    uint64        `json:"frames_captured"`
	FramesDropped     uint64        `json:"frames_dropped"`
	TotalCaptureTime  time.Duration `json:"total_capture_time"`
	AvgCaptureTime    time.Duration `json:"avg_capture_time"`
	ActiveSubscribers int           `json:"active_subscribers"`
}

// NewMetrics builds a metrics block. subscribers is sampled live on
// every Snapshot, typically the hub's count.
func NewMetrics(subscribers func() int) *Metrics {
	if subscribers == nil {
		subscribers = func() int { return 0 }
	}
	return &Metrics{subscribers: subscribers}
}

// RecordCapture accounts one delivered frame and its acquisition cost.
func (m *Metrics) RecordCapture(d time.Duration) {
	m.framesCaptured.Add(1)
	m.totalCaptureTime.Add(int64(d))
}

// RecordDropped adds n frames lost downstream (subscriber lag, encode
// failures). AccessLost recovery itself does not count here.
func (m *Metrics) RecordDropped(n uint64) {
	m.framesDropped.Add(n)
}

func (m *Metrics) FramesCaptured() uint64 { return m.framesCaptured.Load() }
func (m *Metrics) FramesDropped() uint64  { return m.framesDropped.Load() }

// Reset zeroes all counters. Operator action only.
func (m *Metrics) Reset() {
	m.framesCaptured.Store(0)
	m.framesDropped.Store(0)
	m.totalCaptureTime.Store(0)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	captured := m.framesCaptured.Load()
	total := time.Duration(m.totalCaptureTime.Load())
	var avg time.Duration
	if captured > 0 {
		avg = total / time.Duration(captured)
	}
	return MetricsSnapshot{
		FramesCaptured:    captured,
		FramesDropped:     m.framesDropped.Load(),
		TotalCaptureTime:  total,
		AvgCaptureTime:    avg,
		ActiveSubscribers: m.subscribers(),
	}
}

// Stats renders the informational string shown by the metrics
// endpoints and CLI.
func (m *Metrics) Stats() string {
	s := m.Snapshot()
	return fmt.Sprintf("captured=%d dropped=%d avg_capture=%.2fms subscribers=%d",
		s.FramesCaptured, s.FramesDropped,
		float64(s.AvgCaptureTime.Microseconds())/1000.0,
		s.ActiveSubscribers)
}
