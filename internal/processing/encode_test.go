package processing

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"

	"github.com/framecast/engine/internal/capture"
)

func rawFrame(w, h int, format capture.PixelFormat) *capture.Frame {
	bpp := format.BytesPerPixel()
	data := make([]byte, w*h*bpp)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return &capture.Frame{Data: data, Width: w, Height: h, Format: format}
}

func TestPassthroughIsByteIdentical(t *testing.T) {
	in := &capture.Frame{
		Data:   []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02},
		Width:  320,
		Height: 240,
		Format: capture.FormatJPEG,
	}
	enc := NewEncoder(800, 450, 30)

	out, err := enc.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !bytes.Equal(out.Data, in.Data) {
		t.Error("pre-encoded frame was modified, want byte-identical passthrough")
	}
	if out.Width != 320 || out.Height != 240 {
		t.Errorf("dimensions = %dx%d, want 320x240", out.Width, out.Height)
	}
}

func TestOversizedFrameBoundedToTarget(t *testing.T) {
	enc := NewEncoder(800, 450, 30)
	out, err := enc.Process(rawFrame(3840, 2160, capture.FormatBGRA8))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Width != 800 || out.Height != 450 {
		t.Fatalf("output = %dx%d, want 800x450", out.Width, out.Height)
	}

	img, err := jpeg.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 800 || b.Dy() != 450 {
		t.Errorf("decoded = %dx%d, want 800x450", b.Dx(), b.Dy())
	}
}

func TestSmallFrameKeepsDimensions(t *testing.T) {
	enc := NewEncoder(800, 450, 30)
	out, err := enc.Process(rawFrame(640, 360, capture.FormatRGBA8))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Width != 640 || out.Height != 360 {
		t.Fatalf("output = %dx%d, want 640x360", out.Width, out.Height)
	}
	img, err := jpeg.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 640 || b.Dy() != 360 {
		t.Errorf("decoded = %dx%d, want 640x360", b.Dx(), b.Dy())
	}
}

func TestShortBufferIsEncodeError(t *testing.T) {
	enc := NewEncoder(800, 450, 30)
	f := &capture.Frame{Data: []byte{1, 2, 3}, Width: 100, Height: 100, Format: capture.FormatBGRA8}
	if _, err := enc.Process(f); err == nil {
		t.Fatal("Process on short buffer = nil, want error")
	}
}

func TestBoxDownsampleAverages(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	// two black pixels, two white pixels
	for _, p := range []struct{ x, y, v int }{{0, 0, 0}, {1, 0, 255}, {0, 1, 0}, {1, 1, 255}} {
		off := p.y*src.Stride + p.x*4
		src.Pix[off] = byte(p.v)
		src.Pix[off+1] = byte(p.v)
		src.Pix[off+2] = byte(p.v)
		src.Pix[off+3] = 255
	}

	dst := image.NewRGBA(image.Rect(0, 0, 1, 1))
	boxDownsample(src, dst)
	got := dst.Pix[0]
	if got < 126 || got > 128 {
		t.Errorf("averaged pixel = %d, want ~127", got)
	}
	if dst.Pix[3] != 255 {
		t.Errorf("alpha = %d, want 255", dst.Pix[3])
	}
}

func TestFrameToRGBAConvertsBGRA(t *testing.T) {
	f := &capture.Frame{
		Data:   []byte{10, 20, 30, 0}, // BGRA
		Width:  1,
		Height: 1,
		Format: capture.FormatBGRA8,
	}
	img, err := frameToRGBA(f)
	if err != nil {
		t.Fatalf("frameToRGBA: %v", err)
	}
	if img.Pix[0] != 30 || img.Pix[1] != 20 || img.Pix[2] != 10 || img.Pix[3] != 255 {
		t.Errorf("pixel = %v, want [30 20 10 255]", img.Pix[:4])
	}
}
