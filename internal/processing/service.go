package processing

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/framecast/engine/internal/capture"
	"github.com/framecast/engine/internal/framehub"
	"github.com/framecast/engine/internal/lifecycle"
	"github.com/framecast/engine/internal/logging"
)

// ServiceConfig wires a Service.
type ServiceConfig struct {
	PreviewWidth  int
	PreviewHeight int
	JPEGQuality   int
	// SettleDelay bounds how long stop waits for the in-flight
	// processing iteration to observe the stop and exit. Best effort,
	// not a correctness guarantee.
	SettleDelay time.Duration
	Detector    Detector
}

// CaptureController is the capture-side surface the service drives.
// Satisfied by *capture.Orchestrator.
type CaptureController interface {
	BindWindow(name string) error
	StartHighPerformanceMode() error
	Stop()
	Subscribe() *framehub.Subscription[*capture.Frame]
	Metrics() *capture.Metrics
	IsActive() bool
}

// Service subscribes to the capture hub, runs detection and encoding
// per frame, and republishes only the most recent processed result.
// Start, stop, and retarget are safe under concurrent callers.
type Service struct {
	orch   CaptureController
	enc    *Encoder
	det    Detector
	latest *Latest
	settle time.Duration
	log    *slog.Logger

	life lifecycle.Machine

	mu       sync.Mutex // guards target, sub, loopDone
	target   string
	sub      *framehub.Subscription[*capture.Frame]
	loopDone chan struct{}

	detections    atomic.Uint64
	processed     atomic.Uint64
	totalProcTime atomic.Int64 // nanoseconds
}

func NewService(orch CaptureController, cfg ServiceConfig) *Service {
	if cfg.PreviewWidth <= 0 {
		cfg.PreviewWidth = 800
	}
	if cfg.PreviewHeight <= 0 {
		cfg.PreviewHeight = 450
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 30
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 100 * time.Millisecond
	}
	if cfg.Detector == nil {
		cfg.Detector = DefaultDetector()
	}
	return &Service{
		orch:   orch,
		enc:    NewEncoder(cfg.PreviewWidth, cfg.PreviewHeight, cfg.JPEGQuality),
		det:    cfg.Detector,
		latest: NewLatest(),
		settle: cfg.SettleDelay,
		log:    logging.L("processing"),
	}
}

// Latest exposes the single-slot output channel for display consumers.
func (s *Service) Latest() *Latest { return s.latest }

// Target returns the currently bound target name, empty when stopped.
func (s *Service) Target() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Detections returns how many frames the detector flagged.
func (s *Service) Detections() uint64 { return s.detections.Load() }

// ResetMetrics zeroes the processing counters.
func (s *Service) ResetMetrics() {
	s.detections.Store(0)
	s.processed.Store(0)
	s.totalProcTime.Store(0)
}

// SetTarget stops any running pipeline, rebinds the orchestrator to
// the named window, and starts processing. Returns ErrTargetNotFound
// without disturbing the stopped state when the window is absent.
func (s *Service) SetTarget(name string) error {
	return s.start(name, func() error { return s.orch.BindWindow(name) })
}

// SetDisplayTarget points the pipeline at the configured display via
// the duplication engine instead of a window.
func (s *Service) SetDisplayTarget() error {
	return s.start("display", func() error { return s.orch.StartHighPerformanceMode() })
}

func (s *Service) start(name string, bind func() error) error {
	// A start during an in-flight stop must wait for the stop to
	// finish, never interleave teardown with setup.
	s.Stop()

	if !s.life.Transition(lifecycle.Stopped, lifecycle.Starting) {
		return fmt.Errorf("processing: service is %s", s.life.State())
	}

	if err := bind(); err != nil {
		s.life.Set(lifecycle.Stopped)
		return err
	}

	sub := s.orch.Subscribe()
	done := make(chan struct{})

	s.mu.Lock()
	s.target = name
	s.sub = sub
	s.loopDone = done
	s.mu.Unlock()

	s.life.Transition(lifecycle.Starting, lifecycle.Running)
	go s.loop(sub, done)
	s.log.Info("processing started", logging.KeyTarget, name)
	return nil
}

// loop consumes frames until the subscription closes or the Running
// state is cleared. Lag and per-frame failures never abort it.
func (s *Service) loop(sub *framehub.Subscription[*capture.Frame], done chan struct{}) {
	defer close(done)
	for s.life.Is(lifecycle.Running) {
		f, err := sub.Recv()
		if err != nil {
			var lag *framehub.ErrLagged
			if errors.As(err, &lag) {
				s.orch.Metrics().RecordDropped(lag.Skipped)
				s.log.Debug("subscriber lagged", "skipped", lag.Skipped)
				continue
			}
			// hub closed or subscription cancelled
			return
		}

		start := time.Now()
		if s.det.Detect(f) {
			s.detections.Add(1)
		}
		pf, err := s.enc.Process(f)
		if err != nil {
			s.orch.Metrics().RecordDropped(1)
			s.log.Debug("frame dropped", logging.KeyError, err)
			continue
		}
		s.latest.Set(pf)
		s.processed.Add(1)
		s.totalProcTime.Add(int64(time.Since(start)))
	}
}

// Stop tears the pipeline down. Concurrent calls are idempotent: the
// first caller runs the teardown, later callers return immediately.
func (s *Service) Stop() {
	if !s.life.Transition(lifecycle.Running, lifecycle.Stopping) {
		// Not running. A concurrent Stop owns the teardown; a start in
		// progress will finish before observing another Stop.
		return
	}

	s.mu.Lock()
	sub := s.sub
	done := s.loopDone
	s.sub = nil
	s.loopDone = nil
	s.target = ""
	s.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	if done != nil {
		// Bounded grace period for the in-flight iteration.
		select {
		case <-done:
		case <-time.After(s.settle):
		}
	}

	s.latest.Clear()
	s.orch.Stop()
	s.life.Transition(lifecycle.Stopping, lifecycle.Stopped)
	s.log.Info("processing stopped")
}

// State reconciles the internal lifecycle with orchestrator reality: a
// Running flag without active capture and a bound target reads as
// Stopped rather than trusting the flag alone.
func (s *Service) State() lifecycle.State {
	st := s.life.State()
	if st == lifecycle.Running && (!s.orch.IsActive() || s.Target() == "") {
		return lifecycle.Stopped
	}
	return st
}

// Stats renders processing throughput for the metrics surfaces.
func (s *Service) Stats() string {
	processed := s.processed.Load()
	var avg time.Duration
	if processed > 0 {
		avg = time.Duration(s.totalProcTime.Load()) / time.Duration(processed)
	}
	return fmt.Sprintf("state=%s processed=%d detections=%d avg_process=%.2fms",
		s.State(), processed, s.detections.Load(),
		float64(avg.Microseconds())/1000.0)
}
