package camera

import (
	"image"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/frc-vision/internal/errors"
	"github.com/teslashibe/frc-vision/internal/log"
	"github.com/teslashibe/frc-vision/pkg/vision"
)

// propertyIDs maps config property names to capture properties.
var propertyIDs = map[string]gocv.VideoCaptureProperties{
	"brightness":                gocv.VideoCaptureBrightness,
	"contrast":                  gocv.VideoCaptureContrast,
	"saturation":                gocv.VideoCaptureSaturation,
	"hue":                       gocv.VideoCaptureHue,
	"gain":                      gocv.VideoCaptureGain,
	"gamma":                     gocv.VideoCaptureGamma,
	"sharpness":                 gocv.VideoCaptureSharpness,
	"backlight_compensation":    gocv.VideoCaptureBacklight,
	"focus_absolute":            gocv.VideoCaptureFocus,
	"zoom_absolute":             gocv.VideoCaptureZoom,
	"exposure_absolute":         gocv.VideoCaptureExposure,
	"white_balance_temperature": gocv.VideoCaptureWBTemperature,
}

// fourcc maps pixel formats to capture codes.
var fourcc = map[string]string{
	"mjpeg":  "MJPG",
	"yuyv":   "YUYV",
	"rgb565": "RGBP",
	"bgr":    "BGR3",
	"gray":   "GREY",
}

// Source reads frames from one USB camera.
type Source struct {
	name string
	log  *slog.Logger

	mu      sync.Mutex
	vc      *gocv.VideoCapture
	raw     gocv.Mat
	color   gocv.Mat
	resized gocv.Mat
}

// Open opens the device at cfg.Path and applies cfg.
func Open(cfg Config, logger *slog.Logger) (*Source, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	if idx, convErr := strconv.Atoi(cfg.Path); convErr == nil {
		vc, err = gocv.OpenVideoCapture(idx)
	} else {
		vc, err = gocv.OpenVideoCapture(cfg.Path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open camera %q at %s", cfg.Name, cfg.Path)
	}

	s := &Source{
		name:    cfg.Name,
		log:     log.Or(logger).With("component", "camera", "camera", cfg.Name),
		vc:      vc,
		raw:     gocv.NewMat(),
		color:   gocv.NewMat(),
		resized: gocv.NewMat(),
	}

	if code, ok := fourcc[cfg.PixelFormat]; ok {
		vc.Set(gocv.VideoCaptureFOURCC, vc.ToCodec(code))
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))

	if err := s.Apply(cfg); err != nil {
		s.Close()
		return nil, err
	}

	s.log.Info("camera opened", "path", cfg.Path, "width", cfg.Width, "height", cfg.Height, "fps", cfg.FPS)
	return s, nil
}

// Apply pushes the driver settings of cfg to the device. It is the
// Manager's OnConfigChange hook.
func (s *Source) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, set := range Settings(cfg) {
		s.vc.Set(set.Prop, set.Value)
	}
	for _, p := range cfg.Properties {
		if _, ok := propertyIDs[strings.ToLower(p.Name)]; !ok {
			s.log.Warn("unknown camera property", "property", p.Name)
		}
	}
	return nil
}

// Setting is one capture property write.
type Setting struct {
	Prop  gocv.VideoCaptureProperties
	Value float64
}

// Settings translates the driver fields of cfg into capture property writes,
// in the order they must be applied. Unknown properties are skipped.
func Settings(cfg Config) []Setting {
	var out []Setting

	if cfg.Brightness != nil {
		out = append(out, Setting{gocv.VideoCaptureBrightness, float64(*cfg.Brightness)})
	}

	switch v := cfg.WhiteBalance.(type) {
	case nil:
	case string:
		if v == "auto" {
			out = append(out, Setting{gocv.VideoCaptureAutoWB, 1})
		} else {
			out = append(out, Setting{gocv.VideoCaptureAutoWB, 0})
		}
	default:
		if f, ok := toFloat(v); ok {
			out = append(out,
				Setting{gocv.VideoCaptureAutoWB, 0},
				Setting{gocv.VideoCaptureWBTemperature, f})
		}
	}

	// V4L2 auto-exposure: 3 is aperture priority (auto), 1 is manual.
	switch v := cfg.Exposure.(type) {
	case nil:
	case string:
		if v == "auto" {
			out = append(out, Setting{gocv.VideoCaptureAutoExposure, 3})
		} else {
			out = append(out, Setting{gocv.VideoCaptureAutoExposure, 1})
		}
	default:
		if f, ok := toFloat(v); ok {
			out = append(out,
				Setting{gocv.VideoCaptureAutoExposure, 1},
				Setting{gocv.VideoCaptureExposure, f})
		}
	}

	for _, p := range cfg.Properties {
		id, ok := propertyIDs[strings.ToLower(p.Name)]
		if !ok {
			continue
		}
		if f, ok := toFloat(p.Value); ok {
			out = append(out, Setting{id, f})
		}
	}
	return out
}

// GrabFrame reads the next frame into frame, resized to frame's dimensions.
// It returns a zero timestamp when no frame was available.
func (s *Source) GrabFrame(frame *vision.Frame) (uint64, error) {
	if err := frame.Check(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vc == nil {
		return 0, errors.Newf("camera %q is closed", s.name)
	}
	if ok := s.vc.Read(&s.raw); !ok || s.raw.Empty() {
		return 0, nil
	}

	mat := s.raw
	if mat.Channels() == 1 {
		gocv.CvtColor(mat, &s.color, gocv.ColorGrayToBGR)
		mat = s.color
	}
	if mat.Cols() != frame.Width || mat.Rows() != frame.Height {
		gocv.Resize(mat, &s.resized, image.Pt(frame.Width, frame.Height), 0, 0, gocv.InterpolationLinear)
		mat = s.resized
	}

	data := mat.ToBytes()
	if len(data) < frame.Height*frame.Stride() {
		return 0, errors.Newf("camera %q: short frame, %d bytes", s.name, len(data))
	}
	copy(frame.Pix, data)

	return uint64(time.Now().UnixMicro()), nil
}

// Close releases the device.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vc == nil {
		return nil
	}
	err := s.vc.Close()
	s.vc = nil
	s.raw.Close()
	s.color.Close()
	s.resized.Close()
	return err
}
