// Package config loads the FRC coprocessor configuration file.
//
// The file is JSON, /boot/frc.json by default:
//
//	{
//	  "team": 4662,
//	  "ntmode": "client",
//	  "cameras": [
//	    {"name": "rPi Camera 0", "path": "/dev/video0", "width": 160, "height": 120, "fps": 30}
//	  ],
//	  "vision": {"verticalFOV": 40.2, "targetHeight": 5.75}
//	}
//
// Any key can be overridden from the environment with the FRCVISION_ prefix,
// e.g. FRCVISION_TEAM=254 or FRCVISION_VISION_VERTICALFOV=41.
package config

import (
	"fmt"
	"image"
	"strings"

	"github.com/spf13/viper"

	"github.com/teslashibe/frc-vision/internal/errors"
	"github.com/teslashibe/frc-vision/pkg/camera"
	"github.com/teslashibe/frc-vision/pkg/table"
	"github.com/teslashibe/frc-vision/pkg/vision"
)

// Network table modes.
const (
	ModeClient = "client"
	ModeServer = "server"
)

// Extractor backends.
const (
	ExtractorBlob   = "blob"
	ExtractorOpenCV = "opencv"
)

// Config is the whole configuration file.
type Config struct {
	Team    int             `mapstructure:"team" json:"team"`
	NTMode  string          `mapstructure:"ntmode" json:"ntmode"`
	Cameras []camera.Config `mapstructure:"cameras" json:"cameras"`
	Vision  VisionConfig    `mapstructure:"vision" json:"vision"`
	Server  ServerConfig    `mapstructure:"server" json:"server"`

	// Path is the file the config was read from.
	Path string `mapstructure:"-" json:"-"`

	// Warnings are problems that were tolerated, e.g. an unknown ntmode.
	Warnings []string `mapstructure:"-" json:"-"`
}

// VisionConfig holds calibration and pipeline tuning.
type VisionConfig struct {
	// Table is the sub-table results are published under.
	Table string `mapstructure:"table" json:"table"`

	// EnabledDefault is used for isVisionOn until the robot sets it.
	EnabledDefault bool `mapstructure:"enabledDefault" json:"enabledDefault"`

	VerticalFOV       float64 `mapstructure:"verticalFOV" json:"verticalFOV"`
	TargetHeight      float64 `mapstructure:"targetHeight" json:"targetHeight"`
	CameraOffset      float64 `mapstructure:"cameraOffset" json:"cameraOffset"`
	ApplyCameraOffset bool    `mapstructure:"applyCameraOffset" json:"applyCameraOffset"`

	Selection string `mapstructure:"selection" json:"selection"`
	BoxMode   string `mapstructure:"boxMode" json:"boxMode"`
	Extractor string `mapstructure:"extractor" json:"extractor"`

	Filter  vision.FilterConfig `mapstructure:"filter" json:"filter"`
	Reticle ReticleConfig       `mapstructure:"reticle" json:"reticle"`
}

// ReticleConfig is the aiming box corners.
type ReticleConfig struct {
	X1 int `mapstructure:"x1" json:"x1"`
	Y1 int `mapstructure:"y1" json:"y1"`
	X2 int `mapstructure:"x2" json:"x2"`
	Y2 int `mapstructure:"y2" json:"y2"`
}

// Rect returns the reticle as a rectangle.
func (r ReticleConfig) Rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// ServerConfig covers the HTTP server and the table connection.
type ServerConfig struct {
	// Listen is the HTTP listen address for streams, status and (in server
	// mode) the table websocket.
	Listen string `mapstructure:"listen" json:"listen"`

	// Advertise is the host put in stream URLs published to the table.
	Advertise string `mapstructure:"advertise" json:"advertise"`

	// TablePort is the robot's table port in client mode, and an extra
	// table listener in server mode.
	TablePort int `mapstructure:"tablePort" json:"tablePort"`

	// TableAddress overrides the team-derived robot address in client mode.
	TableAddress string `mapstructure:"tableAddress" json:"tableAddress"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ntmode", ModeClient)

	cal := vision.DefaultCalibration()
	v.SetDefault("vision.table", "vision")
	v.SetDefault("vision.enabledDefault", false)
	v.SetDefault("vision.verticalFOV", cal.VerticalFOV)
	v.SetDefault("vision.targetHeight", cal.TargetHeight)
	v.SetDefault("vision.cameraOffset", 0.0)
	v.SetDefault("vision.applyCameraOffset", false)
	v.SetDefault("vision.selection", string(vision.SelectFirst))
	v.SetDefault("vision.boxMode", string(vision.BoxLast))
	v.SetDefault("vision.extractor", ExtractorBlob)

	f := vision.DefaultFilterConfig()
	v.SetDefault("vision.filter.hueMin", f.HueMin)
	v.SetDefault("vision.filter.hueMax", f.HueMax)
	v.SetDefault("vision.filter.satMin", f.SatMin)
	v.SetDefault("vision.filter.satMax", f.SatMax)
	v.SetDefault("vision.filter.valMin", f.ValMin)
	v.SetDefault("vision.filter.valMax", f.ValMax)
	v.SetDefault("vision.filter.minArea", f.MinArea)
	v.SetDefault("vision.filter.minAspect", f.MinAspect)
	v.SetDefault("vision.filter.maxAspect", f.MaxAspect)
	v.SetDefault("vision.filter.morphRadius", f.MorphRadius)

	r := vision.DefaultReticle
	v.SetDefault("vision.reticle.x1", r.Min.X)
	v.SetDefault("vision.reticle.y1", r.Min.Y)
	v.SetDefault("vision.reticle.x2", r.Max.X)
	v.SetDefault("vision.reticle.y2", r.Max.Y)

	v.SetDefault("server.listen", ":1181")
	v.SetDefault("server.advertise", "")
	v.SetDefault("server.tablePort", table.DefaultPort)
	v.SetDefault("server.tableAddress", "")
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("FRCVISION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "could not open '%s'", path),
			"pass the config path as the first argument")
	}

	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "config error in '%s'", path)
	}
	cfg.Path = path
	return cfg, nil
}

// LoadWithViper decodes and validates an already-populated viper instance.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	if !v.IsSet("team") {
		return nil, errors.WithHint(errors.InvalidConfigf("could not read team number"),
			`add "team": <number> at the top level`)
	}
	if !v.IsSet("cameras") {
		return nil, errors.WithHint(errors.InvalidConfigf("could not read cameras"),
			`add a "cameras" array with at least one camera`)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.InvalidConfigf("%v", err), "decode")
	}

	cfg.NTMode = strings.ToLower(strings.TrimSpace(cfg.NTMode))
	if cfg.NTMode != ModeClient && cfg.NTMode != ModeServer {
		cfg.Warnings = append(cfg.Warnings,
			fmt.Sprintf("could not understand ntmode value '%s', using %s", cfg.NTMode, ModeClient))
		cfg.NTMode = ModeClient
	}

	for i := range cfg.Cameras {
		if err := applyCameraDefaults(&cfg.Cameras[i]); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyCameraDefaults(c *camera.Config) error {
	if !camera.ApplyPreset(c) {
		return errors.WithHintf(errors.InvalidConfigf("camera '%s': unknown preset '%s'", c.Name, c.Preset),
			"known presets: %s", strings.Join(camera.PresetNames(), ", "))
	}
	d := camera.DefaultConfig()
	if c.Width == 0 {
		c.Width = d.Width
	}
	if c.Height == 0 {
		c.Height = d.Height
	}
	if c.FPS == 0 {
		c.FPS = d.FPS
	}
	if c.Stream.Width == 0 {
		c.Stream.Width = d.Stream.Width
	}
	if c.Stream.Height == 0 {
		c.Stream.Height = d.Stream.Height
	}
	if c.Stream.Quality == 0 {
		c.Stream.Quality = d.Stream.Quality
	}
	return nil
}

// Validate checks cross-field rules. Every problem is reported at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Team <= 0 || c.Team > 99999 {
		problems = append(problems, fmt.Sprintf("team number %d out of range", c.Team))
	}
	if len(c.Cameras) == 0 {
		problems = append(problems, "at least one camera is required")
	}
	seen := map[string]bool{}
	for i := range c.Cameras {
		cam := &c.Cameras[i]
		for _, p := range cam.Validate() {
			problems = append(problems, fmt.Sprintf("cameras[%d]: %s", i, p))
		}
		if cam.Name != "" && seen[cam.Name] {
			problems = append(problems, fmt.Sprintf("cameras[%d]: duplicate name '%s'", i, cam.Name))
		}
		seen[cam.Name] = true
	}

	if len(c.Cameras) > 0 {
		cal := c.Calibration()
		problems = append(problems, cal.Validate()...)
	}
	problems = append(problems, c.Vision.Filter.Validate()...)

	switch vision.SelectionPolicy(c.Vision.Selection) {
	case vision.SelectFirst, vision.SelectLargest, vision.SelectCentral:
	default:
		problems = append(problems, fmt.Sprintf("unknown selection '%s'", c.Vision.Selection))
	}
	switch vision.BoxMode(c.Vision.BoxMode) {
	case vision.BoxLast, vision.BoxUnion:
	default:
		problems = append(problems, fmt.Sprintf("unknown boxMode '%s'", c.Vision.BoxMode))
	}
	switch c.Vision.Extractor {
	case ExtractorBlob, ExtractorOpenCV:
	default:
		problems = append(problems, fmt.Sprintf("unknown extractor '%s'", c.Vision.Extractor))
	}
	if c.Vision.Table == "" {
		problems = append(problems, "vision.table must not be empty")
	}

	if len(problems) > 0 {
		return errors.InvalidConfigf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// Primary is the camera the pipeline runs on.
func (c *Config) Primary() camera.Config { return c.Cameras[0] }

// Secondary is the driver camera, if configured.
func (c *Config) Secondary() (camera.Config, bool) {
	if len(c.Cameras) < 2 {
		return camera.Config{}, false
	}
	return c.Cameras[1], true
}

// Calibration builds the geometry constants from the primary camera and the
// vision section.
func (c *Config) Calibration() vision.Calibration {
	p := c.Primary()
	return vision.Calibration{
		PixelWidth:        p.Width,
		PixelHeight:       p.Height,
		VerticalFOV:       c.Vision.VerticalFOV,
		TargetHeight:      c.Vision.TargetHeight,
		CameraOffset:      c.Vision.CameraOffset,
		ApplyCameraOffset: c.Vision.ApplyCameraOffset,
	}
}
