package camera

import (
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/teslashibe/frc-vision/internal/errors"
)

// fixedKeys are settings that size the frame buffers and so cannot change
// while the pipeline runs.
var fixedKeys = map[string]bool{
	"name": true, "path": true, "width": true, "height": true,
	"fps": true, "pixel format": true, "preset": true,
}

// Manager owns the live settings of one camera. Dashboard edits go through
// Update and reach the device through OnConfigChange.
type Manager struct {
	mu      sync.RWMutex
	cfg     Config
	version uint64

	// OnConfigChange applies settings to the device. New settings are kept
	// only when it succeeds.
	OnConfigChange func(cfg Config) error
}

// NewManager creates a manager holding cfg as version 1.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, version: 1}
}

// Name returns the camera name.
func (m *Manager) Name() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Name
}

// Config returns a copy of the current settings.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyLocked()
}

func (m *Manager) copyLocked() Config {
	cfg := m.cfg
	cfg.Properties = slices.Clone(m.cfg.Properties)
	return cfg
}

// Version increases by one on every accepted change.
func (m *Manager) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// Set validates cfg, applies it to the device and then stores it.
func (m *Manager) Set(cfg Config) error {
	if problems := cfg.Validate(); len(problems) > 0 {
		return errors.InvalidConfigf("camera %q: %s", cfg.Name, strings.Join(problems, "; "))
	}

	m.mu.RLock()
	apply := m.OnConfigChange
	m.mu.RUnlock()
	if apply != nil {
		if err := apply(cfg); err != nil {
			return errors.Wrapf(err, "apply settings to camera %q", cfg.Name)
		}
	}

	m.mu.Lock()
	m.cfg = cfg
	m.version++
	m.mu.Unlock()
	return nil
}

// Update changes driver settings from a dashboard patch such as
// {"brightness": 30, "exposure": "auto", "contrast": 50}. Keys other than
// brightness, exposure, white balance and quality become driver properties.
// Keys are handled in sorted order so the first error is deterministic.
func (m *Manager) Update(patch map[string]any) error {
	m.mu.RLock()
	cfg := m.copyLocked()
	m.mu.RUnlock()

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		value := patch[key]
		switch key {
		case "brightness":
			v, ok := toInt(value)
			if !ok {
				return errors.InvalidConfigf("brightness must be a number, got %v", value)
			}
			cfg.Brightness = &v
		case "exposure":
			cfg.Exposure = value
		case "white balance", "white_balance":
			cfg.WhiteBalance = value
		case "quality":
			v, ok := toInt(value)
			if !ok {
				return errors.InvalidConfigf("quality must be a number, got %v", value)
			}
			cfg.Stream.Quality = v
		default:
			if fixedKeys[key] {
				return errors.WithHint(
					errors.InvalidConfigf("%s cannot be changed while running", key),
					"edit the config file and restart the service")
			}
			cfg.Properties = setProperty(cfg.Properties, key, value)
		}
	}

	return m.Set(cfg)
}

func setProperty(props []Property, name string, value any) []Property {
	for i := range props {
		if props[i].Name == name {
			props[i].Value = value
			return props
		}
	}
	return append(props, Property{Name: name, Value: value})
}

// Settings returns the current settings as a JSON object with a "version"
// field, the shape /api/cameras serves.
func (m *Manager) Settings() map[string]any {
	m.mu.RLock()
	cfg, version := m.copyLocked(), m.version
	m.mu.RUnlock()

	out := map[string]any{}
	if data, err := json.Marshal(cfg); err == nil {
		_ = json.Unmarshal(data, &out)
	}
	out["version"] = version
	return out
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}
