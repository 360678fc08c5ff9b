// Package vision finds the retro-reflective target in camera frames and
// turns it into the geometry the robot steers by.
//
// The pipeline is: Extractor -> Selector -> Estimator -> Publisher, with the
// Annotator drawing diagnostics back into the frame before it is streamed.
package vision

import (
	"image"
	"image/color"

	"github.com/teslashibe/frc-vision/internal/errors"
)

// ErrInvalidFrame is returned for nil, empty or truncated frames.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is a fixed-size 8-bit BGR image, row-major, 3 bytes per pixel.
// A Frame is allocated once per camera and overwritten by every capture.
type Frame struct {
	Pix    []byte
	Width  int
	Height int
}

// NewFrame allocates a zeroed (black) frame.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Pix:    make([]byte, width*height*3),
		Width:  width,
		Height: height,
	}
}

// Stride is the number of bytes per row.
func (f *Frame) Stride() int { return f.Width * 3 }

// Check validates the frame dimensions against its buffer.
func (f *Frame) Check() error {
	if f == nil || f.Width <= 0 || f.Height <= 0 {
		return ErrInvalidFrame
	}
	if len(f.Pix) < f.Width*f.Height*3 {
		return errors.Wrapf(ErrInvalidFrame, "buffer has %d bytes, need %d", len(f.Pix), f.Width*f.Height*3)
	}
	return nil
}

// BGR returns the pixel at (x, y).
func (f *Frame) BGR(x, y int) (b, g, r uint8) {
	i := y*f.Stride() + x*3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// SetBGR writes the pixel at (x, y). Out-of-bounds writes are ignored.
func (f *Frame) SetBGR(x, y int, b, g, r uint8) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	i := y*f.Stride() + x*3
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = b, g, r
}

// Fill paints rect (clipped to the frame) with a solid color.
func (f *Frame) Fill(rect image.Rectangle, c BGR) {
	rect = rect.Intersect(f.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			f.SetBGR(x, y, c.B, c.G, c.R)
		}
	}
}

// CopyFrom overwrites f with src, which must have the same dimensions.
func (f *Frame) CopyFrom(src *Frame) error {
	if src.Width != f.Width || src.Height != f.Height {
		return errors.Wrapf(ErrInvalidFrame, "size %dx%d does not match %dx%d", src.Width, src.Height, f.Width, f.Height)
	}
	copy(f.Pix, src.Pix)
	return nil
}

// ColorModel implements image.Image.
func (f *Frame) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements image.Image.
func (f *Frame) Bounds() image.Rectangle { return image.Rect(0, 0, f.Width, f.Height) }

// At implements image.Image.
func (f *Frame) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return color.RGBA{}
	}
	b, g, r := f.BGR(x, y)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// BGR is a color in OpenCV channel order.
type BGR struct {
	B, G, R uint8
}

// Named colors used for annotation.
var (
	Blue  = BGR{B: 255}
	Green = BGR{G: 255}
	Red   = BGR{R: 255}
)
