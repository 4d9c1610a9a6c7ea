//go:build !windows

package capture

func newBackend(cfg BackendConfig) (Backend, error) {
	return nil, ErrUnsupported
}

func newDuplicationSession(displayIndex int, gpuProcessing bool) (duplSession, error) {
	return nil, ErrUnsupported
}

type stubResolver struct{}

// NewWindowResolver returns the platform window resolver.
func NewWindowResolver() WindowResolver {
	return stubResolver{}
}

func (stubResolver) Resolve(string) (WindowInfo, error) { return WindowInfo{}, ErrUnsupported }
func (stubResolver) List() ([]WindowInfo, error)        { return nil, ErrUnsupported }

func raiseCapturePriority() error { return nil }
