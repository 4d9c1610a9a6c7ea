package capture

import (
	"bytes"
	"testing"
)

func TestCloneIsIndependent(t *testing.T) {
	f := &Frame{Data: []byte{1, 2, 3, 4}, Width: 1, Height: 1, Format: FormatBGRA8}
	c := f.Clone()
	f.Data[0] = 99
	if c.Data[0] != 1 {
		t.Errorf("clone data mutated with original, got %d", c.Data[0])
	}
}

func TestBGRAToRGBA(t *testing.T) {
	pix := []byte{10, 20, 30, 40}
	BGRAToRGBA(pix)
	want := []byte{30, 20, 10, 255}
	if !bytes.Equal(pix, want) {
		t.Errorf("BGRAToRGBA = %v, want %v", pix, want)
	}
}

func TestPixelFormatBytesPerPixel(t *testing.T) {
	cases := []struct {
		format PixelFormat
		want   int
	}{
		{FormatBGRA8, 4},
		{FormatRGBA8, 4},
		{FormatRGB8, 3},
		{FormatJPEG, 0},
	}
	for _, tc := range cases {
		if got := tc.format.BytesPerPixel(); got != tc.want {
			t.Errorf("%s BytesPerPixel = %d, want %d", tc.format, got, tc.want)
		}
	}
}
