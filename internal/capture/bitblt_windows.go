//go:build windows

package capture

import (
	"errors"
	"sync"
	"time"
)

// bitbltBackend is the legacy block-copy window capturer. Pull
// discipline: the caller polls AcquireFrame at its own cadence.
type bitbltBackend struct {
	mu      sync.Mutex
	surface gdiSurface
	closed  bool
}

func newBitBltBackend(cfg BackendConfig) (Backend, error) {
	b := &bitbltBackend{surface: gdiSurface{hwnd: cfg.Target.Window}}
	if err := b.surface.ensure(); err != nil && !errors.Is(err, ErrNoFrame) {
		return nil, err
	}
	return b, nil
}

func (b *bitbltBackend) Kind() BackendKind { return KindBitBlt }

// AcquireFrame block-copies the window's client area.
// Returns (nil, nil) when the window is minimized.
func (b *bitbltBackend) AcquireFrame() (*Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrTargetNotFound
	}
	if err := b.surface.ensure(); err != nil {
		if errors.Is(err, ErrNoFrame) {
			return nil, nil
		}
		return nil, err
	}

	s := &b.surface
	ret, _, _ := procBitBlt.Call(s.memDC, 0, 0, uintptr(s.width), uintptr(s.height),
		s.windowDC, 0, 0, srcCopy|captureBlt)
	if ret == 0 {
		// CAPTUREBLT is rejected during some desktop transitions.
		ret, _, _ = procBitBlt.Call(s.memDC, 0, 0, uintptr(s.width), uintptr(s.height),
			s.windowDC, 0, 0, srcCopy)
		if ret == 0 {
			return nil, nil
		}
	}
	if err := s.readPixels(); err != nil {
		return nil, err
	}
	f := s.frame(KindBitBlt.String())
	f.Timestamp = time.Now()
	// detach from the surface's reused pixel buffer
	return f.Clone(), nil
}

func (b *bitbltBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.surface.release()
	return nil
}

var _ Backend = (*bitbltBackend)(nil)
