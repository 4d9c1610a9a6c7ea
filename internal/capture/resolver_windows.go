//go:build windows

package capture

import (
	"strings"
	"syscall"
	"unsafe"
)

// windowResolver enumerates top-level windows via EnumWindows.
type windowResolver struct{}

// NewWindowResolver returns the platform window resolver.
func NewWindowResolver() WindowResolver {
	return windowResolver{}
}

func windowTitle(hwnd uintptr) string {
	length, _, _ := procGetWindowTextLenW.Call(hwnd)
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), length+1)
	return syscall.UTF16ToString(buf)
}

// enumWindowsCallback is registered once; NewCallback slots are
// process-lifetime and capped, so the accumulator travels via lParam.
var enumWindowsCallback = syscall.NewCallback(func(hwnd, lparam uintptr) uintptr {
	visible, _, _ := procIsWindowVisible.Call(hwnd)
	if visible == 0 {
		return 1 // continue enumeration
	}
	title := windowTitle(hwnd)
	if title == "" {
		return 1
	}
	windows := (*[]WindowInfo)(unsafe.Pointer(lparam))
	*windows = append(*windows, WindowInfo{Handle: hwnd, Title: title, Visible: true})
	return 1
})

// List returns all visible titled top-level windows.
func (windowResolver) List() ([]WindowInfo, error) {
	var windows []WindowInfo
	procEnumWindows.Call(enumWindowsCallback, uintptr(unsafe.Pointer(&windows)))
	return windows, nil
}

// Resolve matches by exact title first, then by case-insensitive
// substring. Ambiguous substring matches resolve to the first hit in
// enumeration order.
func (r windowResolver) Resolve(name string) (WindowInfo, error) {
	windows, err := r.List()
	if err != nil {
		return WindowInfo{}, err
	}
	for _, w := range windows {
		if w.Title == name {
			return w, nil
		}
	}
	lower := strings.ToLower(name)
	for _, w := range windows {
		if strings.Contains(strings.ToLower(w.Title), lower) {
			return w, nil
		}
	}
	return WindowInfo{}, ErrTargetNotFound
}
