// Package opencv implements vision.Extractor on top of gocv.
package opencv

import (
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/frc-vision/internal/errors"
	"github.com/teslashibe/frc-vision/pkg/vision"
)

// Extractor thresholds in HSV, opens the mask and returns external contours
// in OpenCV's order. It keeps its Mats between calls, so it is safe for use
// by one goroutine at a time only; a mutex enforces that.
type Extractor struct {
	cfg vision.FilterConfig

	mu     sync.Mutex
	hsv    gocv.Mat
	mask   gocv.Mat
	kernel gocv.Mat
	closed bool
}

// New creates an Extractor. Call Close to release native memory.
func New(cfg vision.FilterConfig) *Extractor {
	e := &Extractor{
		cfg:  cfg,
		hsv:  gocv.NewMat(),
		mask: gocv.NewMat(),
	}
	if cfg.MorphRadius > 0 {
		k := 2*cfg.MorphRadius + 1
		e.kernel = gocv.GetStructuringElement(gocv.MorphRect, image.Pt(k, k))
	}
	return e
}

// Extract implements vision.Extractor.
func (e *Extractor) Extract(frame *vision.Frame) ([]vision.Contour, error) {
	if err := frame.Check(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errors.New("opencv extractor is closed")
	}

	src, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Pix[:frame.Height*frame.Stride()])
	if err != nil {
		return nil, errors.Wrap(err, "wrap frame")
	}
	defer src.Close()

	gocv.CvtColor(src, &e.hsv, gocv.ColorBGRToHSV)

	lower := gocv.NewScalar(e.cfg.HueMin, e.cfg.SatMin, e.cfg.ValMin, 0)
	upper := gocv.NewScalar(e.cfg.HueMax, e.cfg.SatMax, e.cfg.ValMax, 0)
	if e.cfg.HueMin <= e.cfg.HueMax {
		gocv.InRangeWithScalar(e.hsv, lower, upper, &e.mask)
	} else {
		e.wrappedHue(lower, upper)
	}

	if e.cfg.MorphRadius > 0 {
		gocv.MorphologyEx(e.mask, &e.mask, gocv.MorphOpen, e.kernel)
	}

	points := gocv.FindContours(e.mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer points.Close()

	contours := make([]vision.Contour, 0, points.Size())
	for i := 0; i < points.Size(); i++ {
		pv := points.At(i)
		area := gocv.ContourArea(pv)
		r := gocv.BoundingRect(pv)
		if !e.cfg.Accept(area, r) {
			continue
		}
		contours = append(contours, vision.Contour{
			Points: pv.ToPoints(),
			Area:   area,
			Rect:   r,
		})
	}
	return contours, nil
}

// wrappedHue handles ranges such as 170..10 by OR-ing two InRange passes.
func (e *Extractor) wrappedHue(lower, upper gocv.Scalar) {
	high := gocv.NewMat()
	defer high.Close()

	lo := gocv.NewScalar(0, lower.Val2, lower.Val3, 0)
	hi := gocv.NewScalar(180, upper.Val2, upper.Val3, 0)

	gocv.InRangeWithScalar(e.hsv, lower, hi, &high)
	gocv.InRangeWithScalar(e.hsv, lo, upper, &e.mask)
	gocv.BitwiseOr(e.mask, high, &e.mask)
}

// Close releases the native Mats.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.hsv.Close()
	e.mask.Close()
	if e.cfg.MorphRadius > 0 {
		e.kernel.Close()
	}
	return nil
}
