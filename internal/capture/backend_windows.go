//go:build windows

package capture

import "fmt"

// newBackend constructs the platform backend for a window binding.
// Duplication bindings go through DuplicationEngine instead.
func newBackend(cfg BackendConfig) (Backend, error) {
	switch cfg.Kind {
	case KindBitBlt:
		return newBitBltBackend(cfg)
	case KindCompositor:
		return newCompositorBackend(cfg)
	default:
		return nil, fmt.Errorf("capture: no window backend for kind %s", cfg.Kind)
	}
}
