package processing

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/framecast/engine/internal/capture"
)

// ErrEncode wraps per-frame codec failures. Never fatal; the frame is
// dropped and counted.
var ErrEncode = errors.New("processing: encode failed")

// ProcessedFrame is one display-ready encoded frame. Only the most
// recent one is retained.
type ProcessedFrame struct {
	Data   []byte
	Width  int
	Height int
}

// Encoder turns raw captured frames into preview-sized JPEG bytes.
// Pre-encoded frames pass through byte-identical. Quality is fixed low:
// the preview optimizes latency over fidelity.
type Encoder struct {
	TargetWidth  int
	TargetHeight int
	Quality      int
}

func NewEncoder(targetWidth, targetHeight, quality int) *Encoder {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	return &Encoder{TargetWidth: targetWidth, TargetHeight: targetHeight, Quality: quality}
}

// Process encodes one frame.
func (e *Encoder) Process(f *capture.Frame) (ProcessedFrame, error) {
	if f.Format == capture.FormatJPEG {
		return ProcessedFrame{Data: f.Data, Width: f.Width, Height: f.Height}, nil
	}

	img, err := frameToRGBA(f)
	if err != nil {
		return ProcessedFrame{}, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	outW, outH := f.Width, f.Height
	if f.Width > e.TargetWidth || f.Height > e.TargetHeight {
		scaled := scaledImagePool.Get(e.TargetWidth, e.TargetHeight)
		boxDownsample(img, scaled)
		rawImagePool.Put(img)
		img = scaled
		outW, outH = e.TargetWidth, e.TargetHeight
		defer scaledImagePool.Put(scaled)
	} else {
		defer rawImagePool.Put(img)
	}

	buf := getBuffer()
	defer putBuffer(buf)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: e.Quality}); err != nil {
		return ProcessedFrame{}, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	return ProcessedFrame{Data: data, Width: outW, Height: outH}, nil
}

// frameToRGBA expands a raw frame into an image.RGBA.
func frameToRGBA(f *capture.Frame) (*image.RGBA, error) {
	bpp := f.Format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("unsupported raw format %s", f.Format)
	}
	if len(f.Data) < f.Width*f.Height*bpp {
		return nil, fmt.Errorf("short pixel buffer: %d bytes for %dx%d %s",
			len(f.Data), f.Width, f.Height, f.Format)
	}

	img := rawImagePool.Get(f.Width, f.Height)
	n := f.Width * f.Height
	switch f.Format {
	case capture.FormatRGBA8:
		copy(img.Pix, f.Data[:n*4])
	case capture.FormatBGRA8:
		copy(img.Pix, f.Data[:n*4])
		capture.BGRAToRGBA(img.Pix)
	case capture.FormatRGB8:
		si := 0
		for i := 0; i < n*4; i += 4 {
			img.Pix[i] = f.Data[si]
			img.Pix[i+1] = f.Data[si+1]
			img.Pix[i+2] = f.Data[si+2]
			img.Pix[i+3] = 255
			si += 3
		}
	}
	return img, nil
}

// boxDownsample shrinks src into dst by averaging each source box.
// Plain nearest-neighbor shimmers badly on moving content at these
// ratios.
func boxDownsample(src, dst *image.RGBA) {
	srcW := src.Bounds().Dx()
	srcH := src.Bounds().Dy()
	dstW := dst.Bounds().Dx()
	dstH := dst.Bounds().Dy()

	for dy := 0; dy < dstH; dy++ {
		y0 := dy * srcH / dstH
		y1 := (dy + 1) * srcH / dstH
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for dx := 0; dx < dstW; dx++ {
			x0 := dx * srcW / dstW
			x1 := (dx + 1) * srcW / dstW
			if x1 <= x0 {
				x1 = x0 + 1
			}

			var r, g, b, a uint32
			for y := y0; y < y1; y++ {
				off := y*src.Stride + x0*4
				for x := x0; x < x1; x++ {
					r += uint32(src.Pix[off])
					g += uint32(src.Pix[off+1])
					b += uint32(src.Pix[off+2])
					a += uint32(src.Pix[off+3])
					off += 4
				}
			}
			count := uint32((y1 - y0) * (x1 - x0))
			doff := dy*dst.Stride + dx*4
			dst.Pix[doff] = byte(r / count)
			dst.Pix[doff+1] = byte(g / count)
			dst.Pix[doff+2] = byte(b / count)
			dst.Pix[doff+3] = byte(a / count)
		}
	}
}
