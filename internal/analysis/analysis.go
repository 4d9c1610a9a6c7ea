// Package analysis runs computer-vision style consumers against the
// capture stream. It is the second subscriber on the broadcast hub,
// proving frames fan out independently of the preview pipeline.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/framecast/engine/internal/capture"
	"github.com/framecast/engine/internal/framehub"
	"github.com/framecast/engine/internal/lifecycle"
	"github.com/framecast/engine/internal/logging"
	"github.com/framecast/engine/internal/workerpool"
)

// Analyzer consumes one frame. Implementations run on pool workers and
// may take longer than the capture cadence; stale frames are shed by
// the pool's bounded queue, not by blocking the hub.
type Analyzer interface {
	Analyze(f *capture.Frame)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(f *capture.Frame)

func (fn AnalyzerFunc) Analyze(f *capture.Frame) { fn(f) }

// FrameSource is the subscription surface the service consumes.
// Satisfied by *capture.Orchestrator.
type FrameSource interface {
	Subscribe() *framehub.Subscription[*capture.Frame]
}

// Config sizes the service's worker pool.
type Config struct {
	Workers   int
	QueueSize int
}

// Service feeds hub frames to an Analyzer via a worker pool.
type Service struct {
	source   FrameSource
	analyzer Analyzer
	cfg      Config
	pool     *workerpool.Pool
	log      *slog.Logger

	life lifecycle.Machine
	sub  atomic.Pointer[framehub.Subscription[*capture.Frame]]
	done chan struct{}

	analyzed atomic.Uint64
	skipped  atomic.Uint64
}

func NewService(source FrameSource, analyzer Analyzer, cfg Config) *Service {
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 8
	}
	return &Service{
		source:   source,
		analyzer: analyzer,
		cfg:      cfg,
		log:      logging.L("analysis"),
	}
}

// Start subscribes and begins dispatching frames. Idempotent while
// running.
func (s *Service) Start() error {
	if !s.life.Transition(lifecycle.Stopped, lifecycle.Starting) {
		return nil
	}
	s.pool = workerpool.New(s.cfg.Workers, s.cfg.QueueSize)
	sub := s.source.Subscribe()
	s.sub.Store(sub)
	s.done = make(chan struct{})
	s.life.Transition(lifecycle.Starting, lifecycle.Running)
	go s.loop(sub, s.done)
	return nil
}

func (s *Service) loop(sub *framehub.Subscription[*capture.Frame], done chan struct{}) {
	defer close(done)
	for s.life.Is(lifecycle.Running) {
		f, err := sub.Recv()
		if err != nil {
			var lag *framehub.ErrLagged
			if errors.As(err, &lag) {
				s.skipped.Add(lag.Skipped)
				continue
			}
			return
		}
		if !s.pool.Submit(func() {
			s.analyzer.Analyze(f)
			s.analyzed.Add(1)
		}) {
			s.skipped.Add(1)
		}
	}
}

// Stop cancels the subscription and drains in-flight analysis.
// Concurrent calls: one teardown, the rest return immediately.
func (s *Service) Stop() {
	if !s.life.Transition(lifecycle.Running, lifecycle.Stopping) {
		return
	}
	if sub := s.sub.Swap(nil); sub != nil {
		sub.Cancel()
	}
	<-s.done

	s.pool.StopAccepting()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.pool.Drain(ctx)

	s.life.Transition(lifecycle.Stopping, lifecycle.Stopped)
	s.log.Info("analysis stopped",
		"analyzed", s.analyzed.Load(), "skipped", s.skipped.Load())
}

func (s *Service) State() lifecycle.State { return s.life.State() }

// Analyzed returns how many frames reached the analyzer.
func (s *Service) Analyzed() uint64 { return s.analyzed.Load() }

// Skipped returns frames lost to lag or a saturated pool.
func (s *Service) Skipped() uint64 { return s.skipped.Load() }
