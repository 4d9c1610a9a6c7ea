package capture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/framecast/engine/internal/logging"
)

// EngineState tracks the duplication session lifecycle.
type EngineState int

const (
	EngineUninitialized EngineState = iota
	EngineBound
	EngineAccessLost
)

func (s EngineState) String() string {
	switch s {
	case EngineUninitialized:
		return "uninitialized"
	case EngineBound:
		return "bound"
	case EngineAccessLost:
		return "access_lost"
	default:
		return "unknown"
	}
}

// duplSession is one OS-level desktop duplication session. CaptureFrame
// returns (nil, nil) when no new frame accumulated, ErrAccessLost when
// the session was invalidated, or a wrapped error otherwise.
type duplSession interface {
	CaptureFrame() (*Frame, error)
	Close() error
}

type sessionFactory func(displayIndex int, gpuProcessing bool) (duplSession, error)

// DuplicationEngine owns the GPU device, context, and duplication
// session for one display. All capture calls are serialized; after
// AccessLost the caller must Initialize again before capturing.
type DuplicationEngine struct {
	mu      sync.Mutex
	state   EngineState
	session duplSession

	factory       sessionFactory
	displayIndex  int
	gpuProcessing bool
}

func NewDuplicationEngine(displayIndex int, gpuProcessing bool) *DuplicationEngine {
	return &DuplicationEngine{
		factory:       newDuplicationSession,
		displayIndex:  displayIndex,
		gpuProcessing: gpuProcessing,
	}
}

// Initialize binds the engine to its display. Valid from Uninitialized
// or AccessLost; calling it while Bound is a no-op.
func (e *DuplicationEngine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == EngineBound {
		return nil
	}
	sess, err := e.factory(e.displayIndex, e.gpuProcessing)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResourceCreation, err)
	}
	e.session = sess
	e.state = EngineBound
	logging.L("duplication").Debug("session bound", logging.KeyDisplay, e.displayIndex)
	return nil
}

// CaptureFrame acquires the next desktop frame. (nil, nil) means no new
// frame yet. ErrAccessLost releases the session and moves the engine to
// AccessLost; the caller reinitializes and continues.
func (e *DuplicationEngine) CaptureFrame() (*Frame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case EngineUninitialized:
		return nil, fmt.Errorf("capture: engine not initialized")
	case EngineAccessLost:
		return nil, ErrAccessLost
	}

	f, err := e.session.CaptureFrame()
	if errors.Is(err, ErrAccessLost) {
		logging.L("duplication").Info("duplication access lost, session released",
			logging.KeyDisplay, e.displayIndex)
		e.session.Close()
		e.session = nil
		e.state = EngineAccessLost
		return nil, ErrAccessLost
	}
	return f, err
}

// State returns the current lifecycle state.
func (e *DuplicationEngine) State() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Close releases the session and returns the engine to Uninitialized.
func (e *DuplicationEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.session != nil {
		err = e.session.Close()
		e.session = nil
	}
	e.state = EngineUninitialized
	return err
}
