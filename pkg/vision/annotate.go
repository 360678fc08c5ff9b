package vision

import "image"

// DefaultReticle is the fixed manual-aiming box drawn on every processed frame.
var DefaultReticle = image.Rect(105, 95, 215, 135)

// Annotator draws selected blobs and the aiming reticle into a frame.
// Rectangles are 1 px outlines with both corners inclusive, clipped to the frame.
type Annotator struct {
	Reticle      image.Rectangle
	ReticleColor BGR
	BlobColors   []BGR // indexed by selection order, cycled
}

// NewAnnotator returns an annotator with the default reticle and colors:
// first blob blue, second red, reticle green.
func NewAnnotator() *Annotator {
	return &Annotator{
		Reticle:      DefaultReticle,
		ReticleColor: Green,
		BlobColors:   []BGR{Blue, Red},
	}
}

// Annotate outlines each picked contour and then the reticle.
func (a *Annotator) Annotate(frame *Frame, picked []Contour) {
	for i, c := range picked {
		col := Blue
		if len(a.BlobColors) > 0 {
			col = a.BlobColors[i%len(a.BlobColors)]
		}
		DrawRect(frame, c.Rect.Min, c.Rect.Max, col)
	}
	if !a.Reticle.Empty() {
		DrawRect(frame, a.Reticle.Min, a.Reticle.Max, a.ReticleColor)
	}
}

// DrawRect outlines the rectangle with corners p1 and p2, both inclusive.
func DrawRect(frame *Frame, p1, p2 image.Point, c BGR) {
	x0, x1 := min(p1.X, p2.X), max(p1.X, p2.X)
	y0, y1 := min(p1.Y, p2.Y), max(p1.Y, p2.Y)

	for x := x0; x <= x1; x++ {
		frame.SetBGR(x, y0, c.B, c.G, c.R)
		frame.SetBGR(x, y1, c.B, c.G, c.R)
	}
	for y := y0; y <= y1; y++ {
		frame.SetBGR(x0, y, c.B, c.G, c.R)
		frame.SetBGR(x1, y, c.B, c.G, c.R)
	}
}
