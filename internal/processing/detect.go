package processing

import "github.com/framecast/engine/internal/capture"

// Detector decides whether a frame contains the feature of interest.
// Detect must be cheap and non-blocking relative to the capture
// cadence; anything heavier belongs on the analysis worker pool.
type Detector interface {
	Detect(f *capture.Frame) bool
}

// DetectorFunc adapts a plain function to the Detector interface.
type DetectorFunc func(f *capture.Frame) bool

func (fn DetectorFunc) Detect(f *capture.Frame) bool { return fn(f) }

// minSizeDetector flags frames at least minWidth x minHeight.
// Placeholder heuristic; real detectors are injected by the caller.
type minSizeDetector struct {
	minWidth  int
	minHeight int
}

func (d minSizeDetector) Detect(f *capture.Frame) bool {
	return f.Width >= d.minWidth && f.Height >= d.minHeight
}

// DefaultDetector returns the built-in size-threshold detector.
func DefaultDetector() Detector {
	return minSizeDetector{minWidth: 100, minHeight: 100}
}
