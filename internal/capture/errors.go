package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrTargetNotFound means the requested window or display does not
	// exist. Surfaced to the bind caller only.
	ErrTargetNotFound = errors.New("capture: target not found")

	// ErrNoFrame means nothing new was produced yet. Not a fault; the
	// caller retries at its normal cadence.
	ErrNoFrame = errors.New("capture: no new frame")

	// ErrAccessLost means the duplication session was invalidated, e.g.
	// by a display mode change. The engine must be reinitialized.
	ErrAccessLost = errors.New("capture: duplication access lost")

	// ErrResourceCreation wraps device, session, or staging texture
	// creation failures. Fatal to the operation that requested it.
	ErrResourceCreation = errors.New("capture: resource creation failed")

	// ErrUnsupported is returned by platform stubs.
	ErrUnsupported = errors.New("capture: not supported on this platform")
)

func errResource(msg string) error {
	return fmt.Errorf("%w: %s", ErrResourceCreation, msg)
}
