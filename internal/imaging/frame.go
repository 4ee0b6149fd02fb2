package imaging

import (
	"github.com/framepulse/framepulse-core/internal/models"
)

// Frame is an immutable decoded raster. Channels is 1 for grayscale or 3 for
// interleaved BGR. Detectors receive a read-only view and must not mutate Pix.
type Frame struct {
	Width        int
	Height       int
	Channels     int
	Pix          []uint8
	TimestampSec float64
	Index        int
}

// NewGray builds a single-channel frame. The pixel slice is adopted, not
// copied.
func NewGray(pix []uint8, w, h int) *Frame {
	return &Frame{Width: w, Height: h, Channels: 1, Pix: pix}
}

// NewBGR builds a three-channel frame from an interleaved BGR buffer.
func NewBGR(pix []uint8, w, h int) *Frame {
	return &Frame{Width: w, Height: h, Channels: 3, Pix: pix}
}

// Validate checks structural consistency of the frame.
func (f *Frame) Validate() error {
	if f == nil || f.Width <= 0 || f.Height <= 0 {
		return models.E(models.KindInput, "imaging.Validate", "empty frame")
	}
	if f.Channels != 1 && f.Channels != 3 {
		return models.E(models.KindInput, "imaging.Validate", "unsupported channel count")
	}
	if len(f.Pix) != f.Width*f.Height*f.Channels {
		return models.E(models.KindInput, "imaging.Validate", "pixel buffer size mismatch")
	}
	return nil
}

// Gray returns the luminance plane. For BGR frames it applies BT.601
// weights; for grayscale frames it returns the buffer as-is.
func (f *Frame) Gray() []uint8 {
	if f.Channels == 1 {
		return f.Pix
	}
	out := make([]uint8, f.Width*f.Height)
	for i := 0; i < len(out); i++ {
		b := float64(f.Pix[3*i])
		g := float64(f.Pix[3*i+1])
		r := float64(f.Pix[3*i+2])
		v := 0.114*b + 0.587*g + 0.299*r
		if v > 255 {
			v = 255
		}
		out[i] = uint8(v + 0.5)
	}
	return out
}

// Downsample returns the frame scaled so its longest side is at most
// maxSide, using nearest-neighbor. Frames already small enough are returned
// unchanged.
func (f *Frame) Downsample(maxSide int) *Frame {
	longest := f.Width
	if f.Height > longest {
		longest = f.Height
	}
	if maxSide <= 0 || longest <= maxSide {
		return f
	}
	scale := float64(maxSide) / float64(longest)
	nw := int(float64(f.Width)*scale + 0.5)
	nh := int(float64(f.Height)*scale + 0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	out := make([]uint8, nw*nh*f.Channels)
	for y := 0; y < nh; y++ {
		sy := y * f.Height / nh
		for x := 0; x < nw; x++ {
			sx := x * f.Width / nw
			di := (y*nw + x) * f.Channels
			si := (sy*f.Width + sx) * f.Channels
			copy(out[di:di+f.Channels], f.Pix[si:si+f.Channels])
		}
	}
	return &Frame{
		Width: nw, Height: nh, Channels: f.Channels, Pix: out,
		TimestampSec: f.TimestampSec, Index: f.Index,
	}
}

// Bytes reports the pixel buffer size, used for buffer memory accounting.
func (f *Frame) Bytes() int { return len(f.Pix) }
