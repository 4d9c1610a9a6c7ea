package capture

import "time"

// PixelFormat identifies the byte layout of a frame's Data.
type PixelFormat int

const (
	FormatBGRA8 PixelFormat = iota
	FormatRGBA8
	FormatRGB8
	FormatJPEG
)

func (f PixelFormat) String() string {
	switch f {
	case FormatBGRA8:
		return "bgra8"
	case FormatRGBA8:
		return "rgba8"
	case FormatRGB8:
		return "rgb8"
	case FormatJPEG:
		return "jpeg"
	default:
		return "unknown"
	}
}

// BytesPerPixel returns 0 for compressed formats.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatBGRA8, FormatRGBA8:
		return 4
	case FormatRGB8:
		return 3
	default:
		return 0
	}
}

// Frame is a single captured frame. Data is tightly packed, no row
// padding, except for FormatJPEG where Data holds the encoded stream.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Format    PixelFormat
	Timestamp time.Time
	Source    string
}

// Clone copies the frame so the receiver can hold it past the
// producer's next reuse of the backing buffer.
func (f *Frame) Clone() *Frame {
	out := *f
	out.Data = make([]byte, len(f.Data))
	copy(out.Data, f.Data)
	return &out
}

// BGRAToRGBA converts tightly packed BGRA pixels to opaque RGBA in
// place. GDI and DXGI leave alpha undefined, so it is forced opaque.
func BGRAToRGBA(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
		pix[i+3] = 255
	}
}
