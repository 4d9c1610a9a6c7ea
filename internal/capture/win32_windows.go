//go:build windows

package capture

import (
	"syscall"
	"unsafe"
)

var (
	user32 = syscall.NewLazyDLL("user32.dll")
	gdi32  = syscall.NewLazyDLL("gdi32.dll")

	procGetDC              = user32.NewProc("GetDC")
	procReleaseDC          = user32.NewProc("ReleaseDC")
	procGetClientRect      = user32.NewProc("GetClientRect")
	procIsWindow           = user32.NewProc("IsWindow")
	procIsWindowVisible    = user32.NewProc("IsWindowVisible")
	procEnumWindows        = user32.NewProc("EnumWindows")
	procGetWindowTextW     = user32.NewProc("GetWindowTextW")
	procGetWindowTextLenW  = user32.NewProc("GetWindowTextLengthW")
	procPrintWindow        = user32.NewProc("PrintWindow")
	procSetProcessDPIAware = user32.NewProc("SetProcessDPIAware")

	procCreateCompatibleDC     = gdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap = gdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject           = gdi32.NewProc("SelectObject")
	procBitBlt                 = gdi32.NewProc("BitBlt")
	procDeleteDC               = gdi32.NewProc("DeleteDC")
	procDeleteObject           = gdi32.NewProc("DeleteObject")
	procGetDIBits              = gdi32.NewProc("GetDIBits")
)

const (
	srcCopy      = 0x00CC0020
	captureBlt   = 0x40000000
	biRGB        = 0
	dibRGBColors = 0

	// PrintWindow flag to capture the DWM-composed surface, including
	// content rendered off the legacy GDI path.
	pwRenderFullContent = 0x00000002
)

type win32Rect struct {
	Left   int32
	Top    int32
	Right  int32
	Bottom int32
}

type bitmapInfoHeader struct {
	BiSize          uint32
	BiWidth         int32
	BiHeight        int32
	BiPlanes        uint16
	BiBitCount      uint16
	BiCompression   uint32
	BiSizeImage     uint32
	BiXPelsPerMeter int32
	BiYPelsPerMeter int32
	BiClrUsed       uint32
	BiClrImportant  uint32
}

type bitmapInfo struct {
	BmiHeader bitmapInfoHeader
	BmiColors [1]uint32
}

func init() {
	if procSetProcessDPIAware.Find() == nil {
		procSetProcessDPIAware.Call()
	}
}

// gdiSurface bundles the persistent GDI handles used to read a window's
// pixels. Handles are created once and reused until the window resizes.
type gdiSurface struct {
	hwnd      uintptr
	windowDC  uintptr
	memDC     uintptr
	hBitmap   uintptr
	oldBitmap uintptr
	bi        bitmapInfo
	width     int
	height    int
	pixBuf    []byte
	inited    bool
}

// ensure creates or recreates the handles when the client area size
// changed. Returns ErrTargetNotFound once the window is gone.
func (s *gdiSurface) ensure() error {
	if alive, _, _ := procIsWindow.Call(s.hwnd); alive == 0 {
		return ErrTargetNotFound
	}

	var rect win32Rect
	if ret, _, _ := procGetClientRect.Call(s.hwnd, uintptr(unsafe.Pointer(&rect))); ret == 0 {
		return ErrTargetNotFound
	}
	width := int(rect.Right - rect.Left)
	height := int(rect.Bottom - rect.Top)
	if width <= 0 || height <= 0 {
		// Minimized windows report an empty client area.
		return ErrNoFrame
	}

	if s.inited && s.width == width && s.height == height {
		return nil
	}
	s.release()

	hdc, _, _ := procGetDC.Call(s.hwnd)
	if hdc == 0 {
		return ErrTargetNotFound
	}
	memDC, _, _ := procCreateCompatibleDC.Call(hdc)
	if memDC == 0 {
		procReleaseDC.Call(s.hwnd, hdc)
		return errResource("CreateCompatibleDC failed")
	}
	hBitmap, _, _ := procCreateCompatibleBitmap.Call(hdc, uintptr(width), uintptr(height))
	if hBitmap == 0 {
		procDeleteDC.Call(memDC)
		procReleaseDC.Call(s.hwnd, hdc)
		return errResource("CreateCompatibleBitmap failed")
	}
	oldBitmap, _, _ := procSelectObject.Call(memDC, hBitmap)
	if oldBitmap == 0 {
		procDeleteObject.Call(hBitmap)
		procDeleteDC.Call(memDC)
		procReleaseDC.Call(s.hwnd, hdc)
		return errResource("SelectObject failed")
	}

	s.windowDC = hdc
	s.memDC = memDC
	s.hBitmap = hBitmap
	s.oldBitmap = oldBitmap
	s.width = width
	s.height = height
	s.inited = true
	s.pixBuf = make([]byte, width*height*4)
	s.bi = bitmapInfo{
		BmiHeader: bitmapInfoHeader{
			BiSize:        uint32(unsafe.Sizeof(bitmapInfoHeader{})),
			BiWidth:       int32(width),
			BiHeight:      -int32(height), // negative = top-down
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: biRGB,
		},
	}
	return nil
}

// readPixels runs GetDIBits into the reusable BGRA buffer.
func (s *gdiSurface) readPixels() error {
	ret, _, _ := procGetDIBits.Call(
		s.memDC,
		s.hBitmap,
		0,
		uintptr(s.height),
		uintptr(unsafe.Pointer(&s.pixBuf[0])),
		uintptr(unsafe.Pointer(&s.bi)),
		dibRGBColors,
	)
	if ret == 0 {
		return errResource("GetDIBits failed")
	}
	return nil
}

// frame wraps the current pixel buffer as a Frame without copying.
// The buffer is reused on the next readPixels, so callers must Clone
// before handing the frame off.
func (s *gdiSurface) frame(source string) *Frame {
	return &Frame{
		Data:   s.pixBuf,
		Width:  s.width,
		Height: s.height,
		Format: FormatBGRA8,
		Source: source,
	}
}

func (s *gdiSurface) release() {
	if !s.inited {
		return
	}
	if s.oldBitmap != 0 && s.memDC != 0 {
		procSelectObject.Call(s.memDC, s.oldBitmap)
	}
	if s.hBitmap != 0 {
		procDeleteObject.Call(s.hBitmap)
	}
	if s.memDC != 0 {
		procDeleteDC.Call(s.memDC)
	}
	if s.windowDC != 0 {
		procReleaseDC.Call(s.hwnd, s.windowDC)
	}
	s.windowDC = 0
	s.memDC = 0
	s.hBitmap = 0
	s.oldBitmap = 0
	s.inited = false
}
