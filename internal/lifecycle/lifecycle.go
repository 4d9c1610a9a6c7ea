// Package lifecycle provides the start/stop state machine shared by
// the capture and processing services. A single state value with
// compare-and-swap transitions makes illegal flag combinations
// (starting and stopping at once) unrepresentable.
package lifecycle

import "sync/atomic"

type State int32

const (
	Stopped State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Machine holds one service's state. The zero value is Stopped.
type Machine struct {
	v atomic.Int32
}

func (m *Machine) State() State {
	return State(m.v.Load())
}

// Transition moves from one state to the next atomically. A false
// return means another caller won the race; the loser must back off,
// not retry blindly.
func (m *Machine) Transition(from, to State) bool {
	return m.v.CompareAndSwap(int32(from), int32(to))
}

// Set forces a state. Reserved for loop-exit paths that must record
// Stopped regardless of what the state was when the loop died.
func (m *Machine) Set(s State) {
	m.v.Store(int32(s))
}

func (m *Machine) Is(s State) bool {
	return m.State() == s
}
