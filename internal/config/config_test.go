package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/frc-vision/internal/errors"
	"github.com/teslashibe/frc-vision/pkg/vision"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frc.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const twoCameras = `{
  "team": 4662,
  "ntmode": "server",
  "cameras": [
    {"name": "Target", "path": "/dev/video0", "pixel format": "mjpeg",
     "brightness": 10, "exposure": 5, "white balance": "hold",
     "properties": [{"name": "contrast", "value": 40}]},
    {"name": "Driver", "path": "1", "preset": "dashboard"}
  ]
}`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, twoCameras))
	require.NoError(t, err)

	assert.Equal(t, 4662, cfg.Team)
	assert.Equal(t, ModeServer, cfg.NTMode)
	assert.Empty(t, cfg.Warnings)
	require.Len(t, cfg.Cameras, 2)

	target := cfg.Primary()
	assert.Equal(t, "Target", target.Name)
	assert.Equal(t, "mjpeg", target.PixelFormat)
	assert.Equal(t, 160, target.Width)
	assert.Equal(t, 120, target.Height)
	assert.Equal(t, 30, target.FPS)
	require.NotNil(t, target.Brightness)
	assert.Equal(t, 10, *target.Brightness)
	assert.Equal(t, "hold", target.WhiteBalance)
	require.Len(t, target.Properties, 1)
	assert.Equal(t, "contrast", target.Properties[0].Name)
	assert.Equal(t, 160, target.Stream.Width)

	driver, ok := cfg.Secondary()
	require.True(t, ok)
	assert.Equal(t, 320, driver.Width)
	assert.Equal(t, 15, driver.FPS)

	assert.Equal(t, "vision", cfg.Vision.Table)
	assert.False(t, cfg.Vision.EnabledDefault)
	assert.Equal(t, string(vision.SelectFirst), cfg.Vision.Selection)
	assert.Equal(t, string(vision.BoxLast), cfg.Vision.BoxMode)
	assert.Equal(t, ExtractorBlob, cfg.Vision.Extractor)
	assert.Equal(t, vision.DefaultFilterConfig(), cfg.Vision.Filter)
	assert.Equal(t, vision.DefaultReticle, cfg.Vision.Reticle.Rect())

	cal := cfg.Calibration()
	assert.Equal(t, vision.DefaultCalibration(), cal)
}

func TestLoad_VisionOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
  "team": 254,
  "cameras": [{"name": "Target", "path": "0", "width": 320, "height": 240}],
  "vision": {
    "verticalFOV": 48.8, "targetHeight": 17, "selection": "largest", "boxMode": "union",
    "cameraOffset": 6, "applyCameraOffset": true,
    "filter": {"hueMin": 60, "minArea": 40}
  },
  "server": {"listen": ":8080", "tableAddress": "roborio.local"}
}`))
	require.NoError(t, err)

	cal := cfg.Calibration()
	assert.Equal(t, 320, cal.PixelWidth)
	assert.Equal(t, 240, cal.PixelHeight)
	assert.Equal(t, 48.8, cal.VerticalFOV)
	assert.Equal(t, 17.0, cal.TargetHeight)
	assert.True(t, cal.ApplyCameraOffset)
	assert.Equal(t, 6.0, cal.CameraOffset)

	assert.Equal(t, "largest", cfg.Vision.Selection)
	assert.Equal(t, "union", cfg.Vision.BoxMode)
	assert.Equal(t, 60.0, cfg.Vision.Filter.HueMin)
	assert.Equal(t, 95.0, cfg.Vision.Filter.HueMax, "unset filter keys keep defaults")
	assert.Equal(t, 40.0, cfg.Vision.Filter.MinArea)

	assert.Equal(t, ModeClient, cfg.NTMode)
	assert.Equal(t, "ws://roborio.local:5810/nt", cfg.TableURL())
	assert.Equal(t, "8080", cfg.ListenPort())

	_, ok := cfg.Secondary()
	assert.False(t, ok)
}

func TestLoad_UnknownNTModeWarns(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"team": 1, "ntmode": "peer", "cameras": [{"name": "c", "path": "0"}]}`))
	require.NoError(t, err)
	assert.Equal(t, ModeClient, cfg.NTMode)
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "peer")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"missing team", `{"cameras": [{"name": "c", "path": "0"}]}`, "team"},
		{"missing cameras", `{"team": 1}`, "cameras"},
		{"empty cameras", `{"team": 1, "cameras": []}`, "at least one camera"},
		{"camera without path", `{"team": 1, "cameras": [{"name": "c"}]}`, "path"},
		{"camera without name", `{"team": 1, "cameras": [{"path": "0"}]}`, "camera name"},
		{"duplicate camera", `{"team": 1, "cameras": [{"name": "c", "path": "0"}, {"name": "c", "path": "1"}]}`, "duplicate"},
		{"unknown preset", `{"team": 1, "cameras": [{"name": "c", "path": "0", "preset": "4k"}]}`, "preset"},
		{"bad fov", `{"team": 1, "cameras": [{"name": "c", "path": "0"}], "vision": {"verticalFOV": 0}}`, "verticalFOV"},
		{"bad selection", `{"team": 1, "cameras": [{"name": "c", "path": "0"}], "vision": {"selection": "tallest"}}`, "selection"},
		{"bad extractor", `{"team": 1, "cameras": [{"name": "c", "path": "0"}], "vision": {"extractor": "cuda"}}`, "extractor"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.True(t, errors.IsInvalidConfig(err), "want invalid config, got %v", err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not open")
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestLoad_MalformedJSON(t *testing.T) {
	_, err := Load(writeConfig(t, `{"team": 1,`))
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FRCVISION_TEAM", "971")
	cfg, err := Load(writeConfig(t, `{"team": 1, "cameras": [{"name": "c", "path": "0"}]}`))
	require.NoError(t, err)
	assert.Equal(t, 971, cfg.Team)
	assert.Equal(t, "ws://10.9.71.2:5810/nt", cfg.TableURL())
}

func TestPath(t *testing.T) {
	assert.Equal(t, DefaultPath, Path(nil))
	assert.Equal(t, DefaultPath, Path([]string{""}))
	assert.Equal(t, "/tmp/frc.json", Path([]string{"/tmp/frc.json", "extra"}))
}

func TestAdvertiseHost(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Advertise: "10.46.62.10"}}
	assert.Equal(t, "10.46.62.10", cfg.AdvertiseHost())

	cfg.Server.Advertise = ""
	assert.NotEmpty(t, cfg.AdvertiseHost())
}

func TestTableListen(t *testing.T) {
	tests := []struct {
		mode   string
		listen string
		port   int
		want   string
	}{
		{ModeServer, ":1181", 5810, ":5810"},
		{ModeServer, "10.46.62.11:1181", 5810, "10.46.62.11:5810"},
		{ModeServer, ":5810", 5810, ""},
		{ModeServer, ":1181", 0, ""},
		{ModeClient, ":1181", 5810, ""},
	}
	for _, tt := range tests {
		cfg := &Config{NTMode: tt.mode}
		cfg.Server.Listen = tt.listen
		cfg.Server.TablePort = tt.port
		assert.Equal(t, tt.want, cfg.TableListen(), "%s %s %d", tt.mode, tt.listen, tt.port)
	}
}
