// Package camera describes and opens the USB cameras the vision process
// reads from. Settings are passed to the capture driver as given; nothing
// here tunes exposure or white balance.
package camera

// Config is one entry of the "cameras" array in the FRC config file.
type Config struct {
	Name string `json:"name" mapstructure:"name"`
	Path string `json:"path" mapstructure:"path"`

	// === Video mode ===
	PixelFormat string `json:"pixel format,omitempty" mapstructure:"pixel format"`
	Width       int    `json:"width" mapstructure:"width"`
	Height      int    `json:"height" mapstructure:"height"`
	FPS         int    `json:"fps" mapstructure:"fps"`

	// Preset fills in the video mode and exposure before the fields above
	// override it. See Presets.
	Preset string `json:"preset,omitempty" mapstructure:"preset"`

	// === Driver settings ===
	// Brightness is 0-100. Nil leaves the driver default.
	Brightness *int `json:"brightness,omitempty" mapstructure:"brightness"`

	// WhiteBalance and Exposure are "auto", "hold", or a number.
	WhiteBalance any `json:"white balance,omitempty" mapstructure:"white balance"`
	Exposure     any `json:"exposure,omitempty" mapstructure:"exposure"`

	// Properties are extra named driver properties.
	Properties []Property `json:"properties,omitempty" mapstructure:"properties"`

	Stream StreamConfig `json:"stream" mapstructure:"stream"`
}

// Property is a named driver property.
type Property struct {
	Name  string `json:"name" mapstructure:"name"`
	Value any    `json:"value" mapstructure:"value"`
}

// StreamConfig is the output side of a camera: what the dashboard sees.
type StreamConfig struct {
	Width   int `json:"width" mapstructure:"width"`
	Height  int `json:"height" mapstructure:"height"`
	Quality int `json:"quality" mapstructure:"quality"` // JPEG quality 1-100
	// Properties such as "compression" are kept for dashboards that read them.
	Properties []Property `json:"properties,omitempty" mapstructure:"properties"`
}

// Limits for USB cameras on a coprocessor.
const (
	MaxWidth  = 1920
	MaxHeight = 1080
	MaxFPS    = 120
)

// DefaultConfig returns the 160x120 mode the vision pipeline is calibrated for.
func DefaultConfig() Config {
	return Config{
		Width:  160,
		Height: 120,
		FPS:    30,
		Stream: DefaultStreamConfig(),
	}
}

// DefaultStreamConfig streams at 160x120 to keep the field network light.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Width:   160,
		Height:  120,
		Quality: 75,
	}
}

// Validate checks the config and returns a list of problems, or nil.
func (c *Config) Validate() []string {
	var errors []string

	if c.Name == "" {
		errors = append(errors, "could not read camera name")
	}
	if c.Path == "" {
		errors = append(errors, "camera '"+c.Name+"': could not read path")
	}

	// Resolution
	if c.Width < 1 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 1 and 1920")
	}
	if c.Height < 1 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 1 and 1080")
	}
	if c.FPS < 1 || c.FPS > MaxFPS {
		errors = append(errors, "fps must be between 1 and 120")
	}

	// Pixel format
	validFormats := map[string]bool{"": true, "mjpeg": true, "yuyv": true, "rgb565": true, "bgr": true, "gray": true}
	if !validFormats[c.PixelFormat] {
		errors = append(errors, "pixel format must be mjpeg, yuyv, rgb565, bgr or gray")
	}

	if c.Brightness != nil && (*c.Brightness < 0 || *c.Brightness > 100) {
		errors = append(errors, "brightness must be between 0 and 100")
	}
	if !validAutoOrNumber(c.WhiteBalance) {
		errors = append(errors, "white balance must be auto, hold or a number")
	}
	if !validAutoOrNumber(c.Exposure) {
		errors = append(errors, "exposure must be auto, hold or a number")
	}

	for _, p := range c.Properties {
		if p.Name == "" {
			errors = append(errors, "property without a name")
		}
	}

	// Stream
	if c.Stream.Width < 1 || c.Stream.Height < 1 {
		errors = append(errors, "stream width and height must be positive")
	}
	if c.Stream.Quality < 1 || c.Stream.Quality > 100 {
		errors = append(errors, "stream quality must be between 1 and 100")
	}

	return errors
}

func validAutoOrNumber(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == "auto" || val == "hold"
	}
	_, ok := toFloat(v)
	return ok
}
