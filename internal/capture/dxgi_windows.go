//go:build windows

package capture

import (
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"github.com/framecast/engine/internal/logging"
)

var (
	d3d11DLL              = syscall.NewLazyDLL("d3d11.dll")
	procD3D11CreateDevice = d3d11DLL.NewProc("D3D11CreateDevice")
)

// D3D11/DXGI constants
const (
	d3dDriverTypeHardware = 1
	d3dFeatureLevel11_0   = 0xb000
	d3d11SDKVersion       = 7

	d3d11CreateDeviceBGRASupport = 0x20

	d3d11UsageStaging  = 3
	d3d11CPUAccessRead = 0x20000
	dxgiFormatB8G8R8A8 = 87

	dxgiErrWaitTimeout   = 0x887A0027
	dxgiErrAccessLost    = 0x887A0026
	dxgiErrInvalidCall   = 0x887A0001
	dxgiErrDeviceRemoved = 0x887A0005
	dxgiErrDeviceReset   = 0x887A0007

	// DXGI/D3D11 COM vtable indices
	dxgiDeviceGetAdapter       = 7  // IDXGIDevice (after IUnknown+IDXGIObject)
	dxgiAdapterEnumOutputs     = 7  // IDXGIAdapter
	dxgiOutput1DuplicateOutput = 22 // IDXGIOutput1
	dxgiDuplGetDesc            = 7  // IDXGIOutputDuplication
	dxgiDuplAcquireNextFrame   = 8  // IDXGIOutputDuplication
	dxgiDuplReleaseFrame       = 14 // IDXGIOutputDuplication
	d3d11DeviceCreateTexture2D = 5  // ID3D11Device
	d3d11TextureGetDesc        = 10 // ID3D11Texture2D
	d3d11CtxMap                = 14 // ID3D11DeviceContext
	d3d11CtxUnmap              = 15 // ID3D11DeviceContext
	d3d11CtxCopyResource       = 47 // ID3D11DeviceContext
)

// COM GUIDs for DXGI interfaces
var (
	iidIDXGIDevice     = comGUID{0x54ec77fa, 0x1377, 0x44e6, [8]byte{0x8c, 0x32, 0x88, 0xfd, 0x5f, 0x44, 0xc8, 0x4c}}
	iidID3D11Texture2D = comGUID{0x6f15aaf2, 0xd208, 0x4e89, [8]byte{0x9a, 0xb4, 0x48, 0x95, 0x35, 0xd3, 0x4f, 0x9c}}
	iidIDXGIOutput1    = comGUID{0x00cddea8, 0x939b, 0x4b83, [8]byte{0xa3, 0x40, 0xa6, 0x85, 0x22, 0x66, 0x66, 0xcc}}
)

// d3d11Texture2DDesc matches D3D11_TEXTURE2D_DESC (44 bytes).
type d3d11Texture2DDesc struct {
	Width          uint32
	Height         uint32
	MipLevels      uint32
	ArraySize      uint32
	Format         uint32
	SampleCount    uint32 // DXGI_SAMPLE_DESC.Count
	SampleQuality  uint32 // DXGI_SAMPLE_DESC.Quality
	Usage          uint32
	BindFlags      uint32
	CPUAccessFlags uint32
	MiscFlags      uint32
}

// d3d11MappedSubresource matches D3D11_MAPPED_SUBRESOURCE.
type d3d11MappedSubresource struct {
	PData      uintptr
	RowPitch   uint32
	DepthPitch uint32
}

type dxgiRational struct {
	Numerator   uint32
	Denominator uint32
}

// dxgiModeDesc matches DXGI_MODE_DESC.
type dxgiModeDesc struct {
	Width            uint32
	Height           uint32
	RefreshRate      dxgiRational
	Format           uint32
	ScanlineOrdering uint32
	Scaling          uint32
}

// dxgiOutDuplDesc matches DXGI_OUTDUPL_DESC.
type dxgiOutDuplDesc struct {
	ModeDesc                   dxgiModeDesc
	Rotation                   uint32
	DesktopImageInSystemMemory int32 // BOOL
}

// dxgiOutDuplFrameInfo matches DXGI_OUTDUPL_FRAME_INFO.
type dxgiOutDuplFrameInfo struct {
	LastPresentTime           int64
	LastMouseUpdateTime       int64
	AccumulatedFrames         uint32
	RectsCoalesced            int32
	ProtectedContentMaskedOut int32
	PointerPositionX          int32
	PointerPositionY          int32
	PointerVisible            int32
	TotalMetadataBufferSize   uint32
	PointerShapeBufferSize    uint32
}

// dxgiSession is one live desktop duplication binding (pure Go, no CGO).
// The session exclusively owns the device and context; the extractor
// borrows them for the session's lifetime.
type dxgiSession struct {
	device      uintptr // ID3D11Device
	context     uintptr // ID3D11DeviceContext
	duplication uintptr // IDXGIOutputDuplication
	extractor   *textureExtractor

	width  int
	height int

	displayIndex int
}

// newDuplicationSession binds desktop duplication to the given output.
func newDuplicationSession(displayIndex int, gpuProcessing bool) (duplSession, error) {
	var device, context uintptr
	featureLevel := uint32(d3dFeatureLevel11_0)
	var actualLevel uint32

	hr, _, _ := procD3D11CreateDevice.Call(
		0,                              // pAdapter (NULL = default)
		uintptr(d3dDriverTypeHardware), // DriverType
		0,                              // Software
		uintptr(d3d11CreateDeviceBGRASupport),
		uintptr(unsafe.Pointer(&featureLevel)),
		1, // FeatureLevels count
		uintptr(d3d11SDKVersion),
		uintptr(unsafe.Pointer(&device)),
		uintptr(unsafe.Pointer(&actualLevel)),
		uintptr(unsafe.Pointer(&context)),
	)
	if int32(hr) < 0 {
		return nil, fmt.Errorf("D3D11CreateDevice failed: 0x%08X", uint32(hr))
	}

	// QueryInterface → IDXGIDevice
	var dxgiDevice uintptr
	_, err := comCall(device, vtblQueryInterface,
		uintptr(unsafe.Pointer(&iidIDXGIDevice)),
		uintptr(unsafe.Pointer(&dxgiDevice)),
	)
	if err != nil {
		comRelease(context)
		comRelease(device)
		return nil, fmt.Errorf("QueryInterface IDXGIDevice: %w", err)
	}
	defer comRelease(dxgiDevice)

	// GetAdapter
	var adapter uintptr
	_, err = comCall(dxgiDevice, dxgiDeviceGetAdapter, uintptr(unsafe.Pointer(&adapter)))
	if err != nil {
		comRelease(context)
		comRelease(device)
		return nil, fmt.Errorf("IDXGIDevice::GetAdapter: %w", err)
	}
	defer comRelease(adapter)

	// EnumOutputs
	var output uintptr
	_, err = comCall(adapter, dxgiAdapterEnumOutputs,
		uintptr(displayIndex),
		uintptr(unsafe.Pointer(&output)),
	)
	if err != nil {
		comRelease(context)
		comRelease(device)
		return nil, fmt.Errorf("IDXGIAdapter::EnumOutputs(%d): %w", displayIndex, err)
	}

	// QueryInterface → IDXGIOutput1
	var output1 uintptr
	_, err = comCall(output, vtblQueryInterface,
		uintptr(unsafe.Pointer(&iidIDXGIOutput1)),
		uintptr(unsafe.Pointer(&output1)),
	)
	comRelease(output)
	if err != nil {
		comRelease(context)
		comRelease(device)
		return nil, fmt.Errorf("QueryInterface IDXGIOutput1: %w", err)
	}
	defer comRelease(output1)

	// DuplicateOutput
	var duplication uintptr
	_, err = comCall(output1, dxgiOutput1DuplicateOutput,
		device,
		uintptr(unsafe.Pointer(&duplication)),
	)
	if err != nil {
		comRelease(context)
		comRelease(device)
		return nil, fmt.Errorf("IDXGIOutput1::DuplicateOutput: %w", err)
	}

	// Dimensions come from GetDesc. Probing with AcquireNextFrame can
	// time out during init when the desktop is idle.
	var duplDesc dxgiOutDuplDesc
	hrGetDesc, _, _ := syscall.SyscallN(
		comVtblFn(duplication, dxgiDuplGetDesc),
		duplication,
		uintptr(unsafe.Pointer(&duplDesc)),
	)
	if int32(hrGetDesc) < 0 {
		comRelease(duplication)
		comRelease(context)
		comRelease(device)
		return nil, fmt.Errorf("IDXGIOutputDuplication::GetDesc failed: 0x%08X", uint32(hrGetDesc))
	}
	width := int(duplDesc.ModeDesc.Width)
	height := int(duplDesc.ModeDesc.Height)
	if width <= 0 || height <= 0 {
		comRelease(duplication)
		comRelease(context)
		comRelease(device)
		return nil, fmt.Errorf("invalid duplication dimensions: %dx%d", width, height)
	}

	extractor, err := newTextureExtractor(device, context, width, height, gpuProcessing)
	if err != nil {
		comRelease(duplication)
		comRelease(context)
		comRelease(device)
		return nil, err
	}

	logging.L("dxgi").Info("desktop duplication bound",
		logging.KeyDisplay, displayIndex, "width", width, "height", height)

	return &dxgiSession{
		device:       device,
		context:      context,
		duplication:  duplication,
		extractor:    extractor,
		width:        width,
		height:       height,
		displayIndex: displayIndex,
	}, nil
}

// CaptureFrame acquires the next desktop frame.
// Returns (nil, nil) when no new frame is available.
func (s *dxgiSession) CaptureFrame() (*Frame, error) {
	var frameInfo dxgiOutDuplFrameInfo
	var resource uintptr

	// 50ms timeout keeps idle polling cheap. AcquireNextFrame returns
	// immediately when a frame is pending, so active content pays no
	// extra latency.
	hr, _, _ := syscall.SyscallN(
		comVtblFn(s.duplication, dxgiDuplAcquireNextFrame),
		s.duplication,
		uintptr(50),
		uintptr(unsafe.Pointer(&frameInfo)),
		uintptr(unsafe.Pointer(&resource)),
	)

	switch uint32(hr) {
	case dxgiErrWaitTimeout:
		return nil, nil
	case dxgiErrAccessLost, dxgiErrInvalidCall, dxgiErrDeviceRemoved, dxgiErrDeviceReset:
		return nil, fmt.Errorf("%w: HRESULT 0x%08X", ErrAccessLost, uint32(hr))
	}
	if int32(hr) < 0 {
		return nil, fmt.Errorf("AcquireNextFrame: 0x%08X", uint32(hr))
	}

	// Frame was acquired but nothing changed since the last one.
	if frameInfo.AccumulatedFrames == 0 {
		comRelease(resource)
		s.releaseFrame()
		return nil, nil
	}

	// QueryInterface → ID3D11Texture2D
	var texture uintptr
	_, err := comCall(resource, vtblQueryInterface,
		uintptr(unsafe.Pointer(&iidID3D11Texture2D)),
		uintptr(unsafe.Pointer(&texture)),
	)
	comRelease(resource)
	if err != nil {
		s.releaseFrame()
		return nil, fmt.Errorf("QueryInterface ID3D11Texture2D: %w", err)
	}

	pix, err := s.extractor.Extract(texture)
	comRelease(texture)
	s.releaseFrame()
	if err != nil {
		return nil, err
	}

	return &Frame{
		Data:      pix,
		Width:     s.width,
		Height:    s.height,
		Format:    FormatBGRA8,
		Timestamp: time.Now(),
		Source:    KindDuplication.String(),
	}, nil
}

func (s *dxgiSession) releaseFrame() {
	syscall.SyscallN(comVtblFn(s.duplication, dxgiDuplReleaseFrame), s.duplication)
}

// Close releases the duplication session and all D3D11 resources.
func (s *dxgiSession) Close() error {
	if s.extractor != nil {
		s.extractor.Close()
		s.extractor = nil
	}
	if s.duplication != 0 {
		comRelease(s.duplication)
		s.duplication = 0
	}
	if s.context != 0 {
		comRelease(s.context)
		s.context = 0
	}
	if s.device != 0 {
		comRelease(s.device)
		s.device = 0
	}
	return nil
}
