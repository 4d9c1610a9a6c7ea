//go:build windows

package capture

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/framecast/engine/internal/logging"
)

// textureExtractor copies GPU-resident captured surfaces into CPU
// pixel buffers. It borrows the session's device and context and must
// not outlive them.
//
// The preferred path reuses one persistent staging texture created at
// bind time. When that path fails (or GPU processing is disabled) it
// falls back to creating a throwaway staging texture sized from the
// source surface, which also handles mid-session resolution changes.
type textureExtractor struct {
	device  uintptr // borrowed ID3D11Device
	context uintptr // borrowed ID3D11DeviceContext

	staging uintptr // owned persistent staging texture, 0 when disabled
	width   int
	height  int

	gpuPathBroken bool
}

func newTextureExtractor(device, context uintptr, width, height int, gpuProcessing bool) (*textureExtractor, error) {
	e := &textureExtractor{
		device:  device,
		context: context,
		width:   width,
		height:  height,
	}
	if !gpuProcessing {
		return e, nil
	}

	desc := d3d11Texture2DDesc{
		Width:          uint32(width),
		Height:         uint32(height),
		MipLevels:      1,
		ArraySize:      1,
		Format:         dxgiFormatB8G8R8A8,
		SampleCount:    1,
		Usage:          d3d11UsageStaging,
		CPUAccessFlags: d3d11CPUAccessRead,
	}
	var staging uintptr
	if _, err := comCall(device, d3d11DeviceCreateTexture2D,
		uintptr(unsafe.Pointer(&desc)),
		0, // pInitialData
		uintptr(unsafe.Pointer(&staging)),
	); err != nil {
		return nil, fmt.Errorf("%w: staging texture: %v", ErrResourceCreation, err)
	}
	e.staging = staging
	return e, nil
}

// Extract copies the surface to CPU memory as tightly packed BGRA.
func (e *textureExtractor) Extract(texture uintptr) ([]byte, error) {
	if e.staging != 0 && !e.gpuPathBroken {
		pix, err := e.copyMapRead(e.staging, texture, e.width, e.height)
		if err == nil {
			return pix, nil
		}
		// Per-frame GPU failures are recovered on the CPU path; only
		// log once and stop retrying a path that doesn't work here.
		e.gpuPathBroken = true
		logging.L("extractor").Warn("staged extraction failed, using CPU path",
			logging.KeyError, err)
	}
	return e.extractCPU(texture)
}

func (e *textureExtractor) extractCPU(texture uintptr) ([]byte, error) {
	var desc d3d11Texture2DDesc
	syscall.SyscallN(comVtblFn(texture, d3d11TextureGetDesc),
		texture, uintptr(unsafe.Pointer(&desc)))
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("extractor: source texture has zero dimensions")
	}

	stagingDesc := desc
	stagingDesc.Usage = d3d11UsageStaging
	stagingDesc.BindFlags = 0
	stagingDesc.CPUAccessFlags = d3d11CPUAccessRead
	stagingDesc.MiscFlags = 0

	var staging uintptr
	if _, err := comCall(e.device, d3d11DeviceCreateTexture2D,
		uintptr(unsafe.Pointer(&stagingDesc)),
		0,
		uintptr(unsafe.Pointer(&staging)),
	); err != nil {
		return nil, fmt.Errorf("%w: fallback staging texture: %v", ErrResourceCreation, err)
	}
	defer comRelease(staging)

	return e.copyMapRead(staging, texture, int(desc.Width), int(desc.Height))
}

// copyMapRead performs CopyResource(staging, source), maps the staging
// texture, and copies out tightly packed rows. The GPU row pitch may
// exceed width*4, so every row is copied independently.
func (e *textureExtractor) copyMapRead(staging, source uintptr, width, height int) ([]byte, error) {
	// CopyResource is void; errors surface on the Map below.
	syscall.SyscallN(
		comVtblFn(e.context, d3d11CtxCopyResource),
		e.context,
		staging,
		source,
	)

	var mapped d3d11MappedSubresource
	hr, _, _ := syscall.SyscallN(
		comVtblFn(e.context, d3d11CtxMap),
		e.context,
		staging,
		0, // Subresource
		1, // D3D11_MAP_READ
		0, // Flags
		uintptr(unsafe.Pointer(&mapped)),
	)
	if int32(hr) < 0 {
		return nil, fmt.Errorf("Map staging texture: 0x%08X", uint32(hr))
	}

	rowPitch := int(mapped.RowPitch)
	rowBytes := width * 4
	pix := make([]byte, height*rowBytes)

	if rowPitch == rowBytes {
		src := unsafe.Slice((*byte)(unsafe.Pointer(mapped.PData)), height*rowPitch)
		copy(pix, src)
	} else {
		for y := 0; y < height; y++ {
			srcRow := unsafe.Slice((*byte)(unsafe.Pointer(mapped.PData+uintptr(y*rowPitch))), rowBytes)
			copy(pix[y*rowBytes:], srcRow)
		}
	}

	syscall.SyscallN(comVtblFn(e.context, d3d11CtxUnmap), e.context, staging, 0)
	return pix, nil
}

// Close releases the persistent staging texture. Borrowed device and
// context handles are left for the session to release.
func (e *textureExtractor) Close() {
	if e.staging != 0 {
		comRelease(e.staging)
		e.staging = 0
	}
}
