package camera

// Preset names for common configurations
const (
	PresetDefault   = "default"
	PresetQVGA      = "qvga"
	PresetVGA       = "vga"
	PresetTarget    = "target"
	PresetDashboard = "dashboard"
)

// presetFor returns the video mode and exposure for a preset name.
func presetFor(name string) (Config, bool) {
	cfg := DefaultConfig()
	switch name {
	case PresetDefault:
	case PresetQVGA:
		cfg.Width, cfg.Height = 320, 240
	case PresetVGA:
		cfg.Width, cfg.Height = 640, 480
	case PresetTarget:
		// Dark image so only the lit tape survives the threshold.
		b := 10
		cfg.Brightness = &b
		cfg.Exposure = 5.0
		cfg.WhiteBalance = "hold"
	case PresetDashboard:
		cfg.Width, cfg.Height = 320, 240
		cfg.FPS = 15
		cfg.Exposure = "auto"
		cfg.WhiteBalance = "auto"
	default:
		return Config{}, false
	}
	return cfg, true
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetQVGA,
		PresetVGA,
		PresetTarget,
		PresetDashboard,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := presetFor(name); ok {
		return &cfg
	}
	return nil
}

// ApplyPreset fills the unset fields of c from its named preset. It reports
// false for an unknown name and leaves c untouched.
func ApplyPreset(c *Config) bool {
	if c.Preset == "" {
		return true
	}
	p := GetPreset(c.Preset)
	if p == nil {
		return false
	}
	if c.Width == 0 {
		c.Width = p.Width
	}
	if c.Height == 0 {
		c.Height = p.Height
	}
	if c.FPS == 0 {
		c.FPS = p.FPS
	}
	if c.Brightness == nil {
		c.Brightness = p.Brightness
	}
	if c.Exposure == nil {
		c.Exposure = p.Exposure
	}
	if c.WhiteBalance == nil {
		c.WhiteBalance = p.WhiteBalance
	}
	return true
}
