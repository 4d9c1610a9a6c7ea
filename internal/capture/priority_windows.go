//go:build windows

package capture

import (
	"golang.org/x/sys/windows"
)

// raiseCapturePriority bumps the process priority class so the capture
// loop keeps its frame cadence under load. Failure is non-fatal.
func raiseCapturePriority() error {
	return windows.SetPriorityClass(windows.CurrentProcess(), windows.ABOVE_NORMAL_PRIORITY_CLASS)
}
