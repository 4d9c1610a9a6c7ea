//go:build windows

package capture

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/framecast/engine/internal/logging"
)

// compositorBackend captures the DWM-composed window surface via
// PrintWindow and delivers frames by callback. Push discipline: a
// dedicated OS thread pumps frames at the configured minimum interval
// so delivery never queues behind the Go scheduler.
type compositorBackend struct {
	cfg BackendConfig

	mu      sync.Mutex
	started bool
	closed  bool
	stop    chan struct{}
	done    chan struct{}
}

func newCompositorBackend(cfg BackendConfig) (Backend, error) {
	if alive, _, _ := procIsWindow.Call(cfg.Target.Window); alive == 0 {
		return nil, ErrTargetNotFound
	}
	if cfg.MinFrameInterval <= 0 {
		cfg.MinFrameInterval = 33 * time.Millisecond
	}
	return &compositorBackend{cfg: cfg}, nil
}

func (b *compositorBackend) Kind() BackendKind { return KindCompositor }

// AcquireFrame is not the delivery path for a push backend.
func (b *compositorBackend) AcquireFrame() (*Frame, error) {
	return nil, ErrNoFrame
}

// Start spawns the delivery thread. onFrame runs on that thread and
// must hand off without blocking on downstream consumers.
func (b *compositorBackend) Start(onFrame func(*Frame, time.Duration), onStopped func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrTargetNotFound
	}
	if b.started {
		return fmt.Errorf("capture: compositor backend already started")
	}
	b.started = true
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.pump(onFrame, onStopped)
	return nil
}

func (b *compositorBackend) pump(onFrame func(*Frame, time.Duration), onStopped func()) {
	// The surface's DCs stay valid only on the thread that created
	// them, and delivery latency must not depend on goroutine
	// scheduling of unrelated work.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(b.done)

	log := logging.L("compositor")
	surface := gdiSurface{hwnd: b.cfg.Target.Window}
	defer surface.release()

	ticker := time.NewTicker(b.cfg.MinFrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
		}

		start := time.Now()
		f, err := b.captureOnce(&surface)
		if err != nil {
			if errors.Is(err, ErrTargetNotFound) {
				log.Info("target window gone, stopping delivery",
					logging.KeyTarget, fmt.Sprintf("0x%X", b.cfg.Target.Window))
				if onStopped != nil {
					onStopped()
				}
				return
			}
			log.Debug("compositor capture failed", logging.KeyError, err)
			continue
		}
		if f == nil {
			continue
		}
		onFrame(f, time.Since(start))
	}
}

func (b *compositorBackend) captureOnce(s *gdiSurface) (*Frame, error) {
	if err := s.ensure(); err != nil {
		if errors.Is(err, ErrNoFrame) {
			return nil, nil
		}
		return nil, err
	}

	ret, _, _ := procPrintWindow.Call(s.hwnd, s.memDC, pwRenderFullContent)
	if ret == 0 {
		// Older windows reject PW_RENDERFULLCONTENT; plain BitBlt from
		// the window DC still works for those.
		ret, _, _ = procBitBlt.Call(s.memDC, 0, 0, uintptr(s.width), uintptr(s.height),
			s.windowDC, 0, 0, srcCopy)
		if ret == 0 {
			return nil, nil
		}
	}
	if err := s.readPixels(); err != nil {
		return nil, err
	}
	f := s.frame(KindCompositor.String())
	f.Timestamp = time.Now()
	// detach from the surface's reused pixel buffer
	return f.Clone(), nil
}

func (b *compositorBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	started := b.started
	b.mu.Unlock()

	if started {
		close(b.stop)
		<-b.done
	}
	return nil
}

var (
	_ Backend     = (*compositorBackend)(nil)
	_ PushBackend = (*compositorBackend)(nil)
)
