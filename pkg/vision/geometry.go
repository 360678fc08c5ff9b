package vision

import (
	"math"

	"github.com/teslashibe/frc-vision/internal/errors"
)

// ErrDegenerateHeight is returned when distance is asked for a target with no height.
var ErrDegenerateHeight = errors.New("target pixel height must be positive")

// Calibration holds the camera and target constants used for geometry.
// It is fixed for the life of the process.
type Calibration struct {
	PixelWidth  int     `json:"pixelWidth"`  // camera frame width
	PixelHeight int     `json:"pixelHeight"` // camera frame height
	VerticalFOV float64 `json:"verticalFOV"` // degrees

	// TargetHeight is the physical height of the target, in the units
	// distances are reported in (inches on the field).
	TargetHeight float64 `json:"targetHeight"`

	// CameraOffset is the distance from the camera to the robot reference
	// point. Only subtracted when ApplyCameraOffset is set.
	CameraOffset      float64 `json:"cameraOffset"`
	ApplyCameraOffset bool    `json:"applyCameraOffset"`
}

// DefaultCalibration is the 160x120 camera with a 40.2 degree vertical field
// of view looking at a 5.75 inch target.
func DefaultCalibration() Calibration {
	return Calibration{
		PixelWidth:   160,
		PixelHeight:  120,
		VerticalFOV:  40.2,
		TargetHeight: 5.75,
	}
}

// Validate returns a list of problems, or nil if valid.
func (c *Calibration) Validate() []string {
	var errs []string
	if c.PixelWidth <= 0 || c.PixelHeight <= 0 {
		errs = append(errs, "pixel width and height must be positive")
	}
	if c.VerticalFOV <= 0 || c.VerticalFOV >= 180 {
		errs = append(errs, "verticalFOV must be between 0 and 180 degrees")
	}
	if c.TargetHeight <= 0 {
		errs = append(errs, "targetHeight must be positive")
	}
	return errs
}

// Estimator computes horizontal offset and pinhole distance.
type Estimator struct {
	cal       Calibration
	numerator float64 // TargetHeight * PixelHeight
	tanFOV    float64 // tan(VerticalFOV in radians)
}

// NewEstimator validates cal and precomputes the constant terms.
func NewEstimator(cal Calibration) (*Estimator, error) {
	if errs := cal.Validate(); len(errs) > 0 {
		return nil, errors.InvalidConfigf("calibration: %v", errs)
	}
	return &Estimator{
		cal:       cal,
		numerator: cal.TargetHeight * float64(cal.PixelHeight),
		tanFOV:    math.Tan(cal.VerticalFOV * math.Pi / 180),
	}, nil
}

// Offset is the horizontal pixel offset of xAvg from the frame center.
// Positive means the target is right of center.
func (e *Estimator) Offset(xAvg float64) float64 {
	return e.OffsetFor(xAvg, e.cal.PixelWidth)
}

// OffsetFor is Offset against an explicit frame width.
func (e *Estimator) OffsetFor(xAvg float64, frameWidth int) float64 {
	return xAvg - float64(frameWidth)/2
}

// Distance estimates range to a target that appears pixelHeight pixels tall.
// Strictly decreasing in pixelHeight.
func (e *Estimator) Distance(pixelHeight float64) (float64, error) {
	if pixelHeight <= 0 || math.IsNaN(pixelHeight) {
		return 0, ErrDegenerateHeight
	}
	d := e.numerator / (pixelHeight * e.tanFOV)
	if e.cal.ApplyCameraOffset {
		d -= e.cal.CameraOffset
	}
	return d, nil
}
