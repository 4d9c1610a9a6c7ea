package capture

import "time"

// BackendKind selects the capture strategy for a binding. The set is
// closed: a binding uses exactly one kind for its whole lifetime.
type BackendKind int

const (
	// KindBitBlt is legacy block-copy window capture.
	KindBitBlt BackendKind = iota
	// KindCompositor is compositor-assisted window capture. Frames are
	// delivered by callback on an OS-owned thread.
	KindCompositor
	// KindDuplication is GPU desktop duplication of a whole display.
	KindDuplication
)

func (k BackendKind) String() string {
	switch k {
	case KindBitBlt:
		return "bitblt"
	case KindCompositor:
		return "compositor"
	case KindDuplication:
		return "duplication"
	default:
		return "unknown"
	}
}

// Target identifies the surface a backend captures. Either a window
// handle or a display index, never both.
type Target struct {
	Window       uintptr
	DisplayIndex int
}

// BackendConfig holds the knobs shared by all backends.
type BackendConfig struct {
	Target Target
	Kind   BackendKind
	// MinFrameInterval caps the push-discipline delivery rate and sets
	// the pull-discipline poll cadence.
	MinFrameInterval time.Duration
	GPUProcessing    bool
}

// Backend acquires raw frames for one bound target.
//
// Pull backends implement AcquireFrame: (nil, nil) means no new frame
// yet. Push backends additionally implement PushBackend and deliver
// frames via callback; their AcquireFrame returns ErrNoFrame.
//
// Close releases all OS resources. A backend is never rebound; target
// switches construct a fresh backend.
type Backend interface {
	AcquireFrame() (*Frame, error)
	Kind() BackendKind
	Close() error
}

// PushBackend is a Backend whose frames arrive via callback on a
// backend-owned thread. onFrame must not block on downstream
// consumers; acquire is the cost of producing the frame. onStopped
// fires once if delivery halts on a fatal error, never on Close.
type PushBackend interface {
	Backend
	Start(onFrame func(f *Frame, acquire time.Duration), onStopped func()) error
}

// WindowInfo describes one enumerable top-level window.
type WindowInfo struct {
	Handle  uintptr
	Title   string
	Visible bool
}

// WindowResolver finds capture targets by name. The presentation layer
// supplies identifiers; the resolver turns them into handles.
type WindowResolver interface {
	Resolve(name string) (WindowInfo, error)
	List() ([]WindowInfo, error)
}
