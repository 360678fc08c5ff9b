package vision

import "image"

// Contour is one candidate blob: its boundary points, enclosed area and
// axis-aligned bounding rectangle. Rect.Max is exclusive, so Rect.Dx() and
// Rect.Dy() are the pixel width and height.
type Contour struct {
	Points []image.Point
	Area   float64
	Rect   image.Rectangle
}

// X is the left edge of the bounding rectangle.
func (c Contour) X() int { return c.Rect.Min.X }

// Y is the top edge of the bounding rectangle.
func (c Contour) Y() int { return c.Rect.Min.Y }

// Width of the bounding rectangle.
func (c Contour) Width() int { return c.Rect.Dx() }

// Height of the bounding rectangle.
func (c Contour) Height() int { return c.Rect.Dy() }

// CenterX is x + w/2 as a float.
func (c Contour) CenterX() float64 {
	return float64(c.Rect.Min.X) + float64(c.Rect.Dx())/2
}

// AspectRatio is width over height, 0 for an empty rectangle.
func (c Contour) AspectRatio() float64 {
	if c.Rect.Dy() == 0 {
		return 0
	}
	return float64(c.Rect.Dx()) / float64(c.Rect.Dy())
}

// Extractor turns a frame into candidate contours. Implementations must not
// modify the frame, and return an empty slice (not an error) when nothing
// matches.
type Extractor interface {
	Extract(frame *Frame) ([]Contour, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(frame *Frame) ([]Contour, error)

// Extract calls fn(frame).
func (fn ExtractorFunc) Extract(frame *Frame) ([]Contour, error) { return fn(frame) }
