package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/framecast/engine/internal/framehub"
	"github.com/framecast/engine/internal/lifecycle"
	"github.com/framecast/engine/internal/logging"
)

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	DisplayIndex  int
	FrameInterval time.Duration
	HubCapacity   int
	GPUProcessing bool
	Resolver      WindowResolver
}

// Orchestrator binds one active capture source to one broadcast hub.
// It owns the backend (or duplication engine), the capture loop, and
// the aggregate metrics. At most one bind or stop is in flight at a
// time; the hub outlives every binding so subscribers stay valid across
// target switches.
type Orchestrator struct {
	cfg     OrchestratorConfig
	hub     *framehub.Hub[*Frame]
	metrics *Metrics
	log     *slog.Logger

	mu       sync.Mutex
	backend  Backend
	engine   *DuplicationEngine
	loopStop chan struct{}
	loopDone chan struct{}

	// life is read lock-free and forced to Stopped by capture loops on
	// fatal exit while Stop may be holding mu waiting for them.
	life lifecycle.Machine

	// test seams; production uses the platform implementations
	backendFactory func(BackendConfig) (Backend, error)
	sessionFactory sessionFactory
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 33 * time.Millisecond
	}
	if cfg.HubCapacity <= 0 {
		cfg.HubCapacity = 100
	}
	if cfg.Resolver == nil {
		cfg.Resolver = NewWindowResolver()
	}
	o := &Orchestrator{
		cfg:            cfg,
		hub:            framehub.New[*Frame](cfg.HubCapacity),
		log:            logging.L("orchestrator"),
		backendFactory: newBackend,
	}
	o.metrics = NewMetrics(o.hub.SubscriberCount)
	return o
}

// Subscribe returns an independent receiver on the hub. Valid even
// while nothing is bound; it just receives nothing until a bind.
func (o *Orchestrator) Subscribe() *framehub.Subscription[*Frame] {
	return o.hub.Subscribe()
}

// Metrics returns the orchestrator's counters.
func (o *Orchestrator) Metrics() *Metrics { return o.metrics }

// Stats returns the informational metrics string.
func (o *Orchestrator) Stats() string { return o.metrics.Stats() }

// ResetMetrics zeroes the capture counters.
func (o *Orchestrator) ResetMetrics() { o.metrics.Reset() }

// IsActive reports whether a capture source is currently bound.
func (o *Orchestrator) IsActive() bool {
	return o.life.Is(lifecycle.Running)
}

// State returns the orchestrator's lifecycle state.
func (o *Orchestrator) State() lifecycle.State {
	return o.life.State()
}

// BindWindow resolves name and starts compositor-assisted capture of
// that window. Any prior binding is fully torn down first.
func (o *Orchestrator) BindWindow(name string) error {
	return o.BindWindowKind(name, KindCompositor)
}

// BindWindowKind binds a window with an explicit backend kind.
// KindCompositor runs push delivery on a backend-owned thread;
// KindBitBlt runs a pull loop at the configured cadence.
func (o *Orchestrator) BindWindowKind(name string, kind BackendKind) error {
	win, err := o.cfg.Resolver.Resolve(name)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.teardownLocked()

	bcfg := BackendConfig{
		Target:           Target{Window: win.Handle},
		Kind:             kind,
		MinFrameInterval: o.cfg.FrameInterval,
		GPUProcessing:    o.cfg.GPUProcessing,
	}
	backend, err := o.backendFactory(bcfg)
	if err != nil {
		return err
	}

	if push, ok := backend.(PushBackend); ok {
		if err := push.Start(o.publish, o.markInactive); err != nil {
			backend.Close()
			return err
		}
	} else {
		o.loopStop = make(chan struct{})
		o.loopDone = make(chan struct{})
		go o.pullLoop(backend, o.loopStop, o.loopDone)
	}

	o.backend = backend
	o.life.Set(lifecycle.Running)
	o.log.Info("window bound",
		logging.KeyTarget, win.Title, "kind", kind.String())
	return nil
}

// StartHighPerformanceMode activates duplication-engine capture of the
// configured display as a background loop. AccessLost is recovered by
// reinitializing in place; subscribers just see a gap in frames.
func (o *Orchestrator) StartHighPerformanceMode() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.teardownLocked()

	engine := NewDuplicationEngine(o.cfg.DisplayIndex, o.cfg.GPUProcessing)
	if o.sessionFactory != nil {
		engine.factory = o.sessionFactory
	}
	if err := engine.Initialize(); err != nil {
		return err
	}

	if err := raiseCapturePriority(); err != nil {
		o.log.Debug("priority boost failed", logging.KeyError, err)
	}

	o.engine = engine
	o.loopStop = make(chan struct{})
	o.loopDone = make(chan struct{})
	go o.duplicationLoop(engine, o.loopStop, o.loopDone)
	o.life.Set(lifecycle.Running)
	o.log.Info("high performance capture started",
		logging.KeyDisplay, o.cfg.DisplayIndex)
	return nil
}

// Stop tears down the active binding and releases its OS resources.
// Subscriptions stay open and simply go quiet. Safe to call repeatedly.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.teardownLocked()
}

// Close stops capture and closes the hub, waking all subscribers.
func (o *Orchestrator) Close() {
	o.Stop()
	o.hub.Close()
}

// teardownLocked releases the current binding. Caller holds o.mu.
func (o *Orchestrator) teardownLocked() {
	if o.loopStop != nil {
		close(o.loopStop)
		<-o.loopDone
		o.loopStop = nil
		o.loopDone = nil
	}
	if o.backend != nil {
		o.backend.Close()
		o.backend = nil
	}
	if o.engine != nil {
		o.engine.Close()
		o.engine = nil
	}
	o.life.Set(lifecycle.Stopped)
}

// publish hands one frame to the hub and accounts it. Callback path for
// push backends; must stay non-blocking.
func (o *Orchestrator) publish(f *Frame, acquire time.Duration) {
	o.hub.Publish(f)
	o.metrics.RecordCapture(acquire)
}

func (o *Orchestrator) pullLoop(backend Backend, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(o.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		start := time.Now()
		f, err := backend.AcquireFrame()
		if err != nil {
			if errors.Is(err, ErrTargetNotFound) {
				o.log.Info("capture target gone, pull loop exiting")
				o.markInactive()
				return
			}
			o.log.Debug("frame acquisition failed", logging.KeyError, err)
			continue
		}
		if f == nil {
			continue
		}
		o.hub.Publish(f)
		o.metrics.RecordCapture(time.Since(start))
	}
}

func (o *Orchestrator) duplicationLoop(engine *DuplicationEngine, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(o.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		start := time.Now()
		f, err := engine.CaptureFrame()
		if errors.Is(err, ErrAccessLost) {
			if rerr := engine.Initialize(); rerr != nil {
				// Reinit failure is fatal to this mode. Surface it once,
				// don't spin on a dead session.
				o.log.Error("duplication reinit failed, high performance mode stopped",
					logging.KeyError, rerr)
				o.markInactive()
				return
			}
			o.log.Info("duplication session reinitialized")
			continue
		}
		if err != nil {
			o.log.Debug("duplication capture failed", logging.KeyError, err)
			continue
		}
		if f == nil {
			continue
		}
		o.hub.Publish(f)
		o.metrics.RecordCapture(time.Since(start))
	}
}

func (o *Orchestrator) markInactive() {
	o.life.Set(lifecycle.Stopped)
}

// ListWindows exposes the resolver's enumeration for the CLI.
func (o *Orchestrator) ListWindows() ([]WindowInfo, error) {
	return o.cfg.Resolver.List()
}

// String implements fmt.Stringer for diagnostics.
func (o *Orchestrator) String() string {
	return fmt.Sprintf("orchestrator(display=%d active=%v %s)",
		o.cfg.DisplayIndex, o.IsActive(), o.metrics.Stats())
}
