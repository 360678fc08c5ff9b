package vision

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// FilterConfig is the color and shape gate applied to every pixel and blob.
// Hue is on OpenCV's 0-180 scale, saturation and value on 0-255, so the same
// values drive both BlobFilter and the OpenCV extractor.
type FilterConfig struct {
	HueMin float64 `json:"hueMin" mapstructure:"hueMin"`
	HueMax float64 `json:"hueMax" mapstructure:"hueMax"`
	SatMin float64 `json:"satMin" mapstructure:"satMin"`
	SatMax float64 `json:"satMax" mapstructure:"satMax"`
	ValMin float64 `json:"valMin" mapstructure:"valMin"`
	ValMax float64 `json:"valMax" mapstructure:"valMax"`

	// MinArea drops blobs smaller than this many pixels.
	MinArea float64 `json:"minArea" mapstructure:"minArea"`

	// Width/height bounds. Zero means unbounded.
	MinAspect float64 `json:"minAspect" mapstructure:"minAspect"`
	MaxAspect float64 `json:"maxAspect" mapstructure:"maxAspect"`

	// MorphRadius is the opening radius used to knock out speckle. 0 disables it.
	MorphRadius int `json:"morphRadius" mapstructure:"morphRadius"`
}

// DefaultFilterConfig matches a green LED ring on retro-reflective tape.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		HueMin:      55,
		HueMax:      95,
		SatMin:      100,
		SatMax:      255,
		ValMin:      80,
		ValMax:      255,
		MinArea:     15,
		MorphRadius: 1,
	}
}

// Validate returns a list of problems, or nil if the config is usable.
func (c *FilterConfig) Validate() []string {
	var errs []string
	if c.HueMin < 0 || c.HueMin > 180 || c.HueMax < 0 || c.HueMax > 180 {
		errs = append(errs, "hue bounds must be between 0 and 180")
	}
	if c.SatMin < 0 || c.SatMax > 255 || c.SatMin > c.SatMax {
		errs = append(errs, "saturation bounds must satisfy 0 <= min <= max <= 255")
	}
	if c.ValMin < 0 || c.ValMax > 255 || c.ValMin > c.ValMax {
		errs = append(errs, "value bounds must satisfy 0 <= min <= max <= 255")
	}
	if c.MinArea < 0 {
		errs = append(errs, "minArea must not be negative")
	}
	if c.MinAspect < 0 || c.MaxAspect < 0 || (c.MaxAspect > 0 && c.MinAspect > c.MaxAspect) {
		errs = append(errs, "aspect bounds must satisfy 0 <= min <= max")
	}
	if c.MorphRadius < 0 {
		errs = append(errs, "morphRadius must not be negative")
	}
	return errs
}

// InRange reports whether an OpenCV-scaled HSV triple passes the color gate.
// HueMin > HueMax selects the wrapped range, e.g. 170..10 for red.
func (c *FilterConfig) InRange(h, s, v float64) bool {
	if s < c.SatMin || s > c.SatMax || v < c.ValMin || v > c.ValMax {
		return false
	}
	if c.HueMin <= c.HueMax {
		return h >= c.HueMin && h <= c.HueMax
	}
	return h >= c.HueMin || h <= c.HueMax
}

// Accept applies the area and aspect gates to a blob.
func (c *FilterConfig) Accept(area float64, rect image.Rectangle) bool {
	if area < c.MinArea || rect.Empty() {
		return false
	}
	aspect := float64(rect.Dx()) / float64(rect.Dy())
	if c.MinAspect > 0 && aspect < c.MinAspect {
		return false
	}
	if c.MaxAspect > 0 && aspect > c.MaxAspect {
		return false
	}
	return true
}

// BlobFilter is a pure-Go Extractor: HSV threshold, morphological opening,
// then 4-connected component labelling. Blobs are returned in the row-major
// order of their top-left-most pixel. Area is the blob's pixel count.
type BlobFilter struct {
	Config FilterConfig
}

// NewBlobFilter creates a BlobFilter.
func NewBlobFilter(cfg FilterConfig) *BlobFilter {
	return &BlobFilter{Config: cfg}
}

// Extract implements Extractor.
func (bf *BlobFilter) Extract(frame *Frame) ([]Contour, error) {
	if err := frame.Check(); err != nil {
		return nil, err
	}
	mask := bf.Mask(frame)
	return bf.components(mask), nil
}

// Mask returns the binary threshold image after opening, 1 byte per pixel,
// 0 or 255.
func (bf *BlobFilter) Mask(frame *Frame) *image.Gray {
	w, h := frame.Width, frame.Height
	mask := image.NewGray(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b, g, r := frame.BGR(x, y)
			c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
			hue, sat, val := c.Hsv()
			if bf.Config.InRange(hue/2, sat*255, val*255) {
				mask.Pix[y*mask.Stride+x] = 255
			}
		}
	}

	if bf.Config.MorphRadius <= 0 {
		return mask
	}

	radius := float64(bf.Config.MorphRadius)
	opened := effect.Dilate(effect.Erode(mask, radius), radius)

	out := image.NewGray(mask.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if opened.Pix[y*opened.Stride+x*4] > 127 {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// components labels 4-connected regions of mask with a breadth-first flood fill.
func (bf *BlobFilter) components(mask *image.Gray) []Contour {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	visited := make([]bool, w*h)
	contours := []Contour{}

	set := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && mask.Pix[y*mask.Stride+x] != 0
	}

	var queue []image.Point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if visited[y*w+x] || !set(x, y) {
				continue
			}

			rect := image.Rect(x, y, x+1, y+1)
			var boundary []image.Point
			area := 0

			visited[y*w+x] = true
			queue = append(queue[:0], image.Pt(x, y))
			for len(queue) > 0 {
				p := queue[0]
				queue = queue[1:]
				area++
				rect = rect.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))

				edge := false
				for _, d := range neighbours4 {
					nx, ny := p.X+d.X, p.Y+d.Y
					if !set(nx, ny) {
						edge = true
						continue
					}
					if !visited[ny*w+nx] {
						visited[ny*w+nx] = true
						queue = append(queue, image.Pt(nx, ny))
					}
				}
				if edge {
					boundary = append(boundary, p)
				}
			}

			if !bf.Config.Accept(float64(area), rect) {
				continue
			}
			contours = append(contours, Contour{
				Points: boundary,
				Area:   float64(area),
				Rect:   rect,
			})
		}
	}
	return contours
}

var neighbours4 = [4]image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
