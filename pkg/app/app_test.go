package app

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/frc-vision/internal/config"
	"github.com/teslashibe/frc-vision/internal/errors"
	"github.com/teslashibe/frc-vision/internal/log"
	"github.com/teslashibe/frc-vision/pkg/camera"
	"github.com/teslashibe/frc-vision/pkg/table"
	"github.com/teslashibe/frc-vision/pkg/vision"
	"github.com/teslashibe/frc-vision/pkg/web"
)

const serverConfig = `{
  "team": 4662,
  "ntmode": "server",
  "cameras": [
    {"name": "rPi Camera 0", "path": "/dev/video0", "width": 160, "height": 120},
    {"name": "Driver", "path": "/dev/video1", "width": 160, "height": 120}
  ],
  "vision": {"enabledDefault": true},
  "server": {"listen": ":1181", "advertise": "frcvision.local"}
}`

func loadConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frc.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T, body string) (*App, map[string]*fakeSource) {
	t.Helper()
	a, err := New(loadConfig(t, body), log.Discard())
	require.NoError(t, err)

	devices := map[string]*fakeSource{}
	a.Open = func(cfg camera.Config, _ *slog.Logger) (Device, error) {
		src := &fakeSource{}
		if len(devices) == 0 {
			src.scene = targetScene()
		}
		devices[cfg.Name] = src
		return src, nil
	}
	require.NoError(t, a.Init())
	t.Cleanup(a.Shutdown)
	return a, devices
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.True(t, errors.IsInvalidConfig(err))

	cfg := loadConfig(t, serverConfig)
	cfg.Vision.VerticalFOV = 0
	_, err = New(cfg, nil)
	assert.True(t, errors.IsInvalidConfig(err))
}

func TestApp_InitPublishesStreams(t *testing.T) {
	a, devices := newTestApp(t, serverConfig)
	assert.Len(t, devices, 2)

	v, ok := a.Store().Get("/CameraPublisher/rPi Camera 0/streams")
	require.True(t, ok)
	assert.Equal(t, []string{"mjpg:http://frcvision.local:1181/stream/rPi%20Camera%200"}, v.Strings)

	v, ok = a.Store().Get("/CameraPublisher/Driver/streams")
	require.True(t, ok)
	assert.Equal(t, []string{"mjpg:http://frcvision.local:1181/stream/Driver"}, v.Strings)

	assert.True(t, a.Store().GetBoolean(table.Key("vision", vision.KeyVisionOn), false),
		"isVisionOn seeded from enabledDefault")

	names := []string{}
	for _, s := range a.WebServer().Streams() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"rPi Camera 0", "Driver"}, names)
}

func TestApp_CycleAndStatus(t *testing.T) {
	a, _ := newTestApp(t, serverConfig)

	require.True(t, a.Runner().Cycle())
	assert.True(t, a.Store().GetBoolean("/vision/isTargetFound", false))

	resp, err := a.WebServer().App().Test(httptest.NewRequest("GET", "/api/status", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var st web.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 4662, st.Team)
	assert.Equal(t, config.ModeServer, st.NTMode)
	assert.True(t, st.TableConnected)
	assert.True(t, st.VisionOn)
	assert.Equal(t, uint64(1), st.Cycles)
	assert.True(t, st.TargetFound)
	assert.Equal(t, 2, st.TargetCount)
	assert.Equal(t, [4]float64{80, 30, 20, 70}, st.BoundingRect)
	require.Len(t, st.Streams, 2)
	assert.Equal(t, uint64(1), st.Streams[0].Frames)
}

func TestApp_ServerModeServesTableOnTablePort(t *testing.T) {
	a, _ := newTestApp(t, serverConfig)
	require.NotNil(t, a.tableWeb)
	assert.Equal(t, ":5810", a.cfg.TableListen())

	resp, err := a.tableWeb.App().Test(httptest.NewRequest("GET", "/api/table", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)

	var entries []table.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.NotEmpty(t, entries)
}

func TestApp_ClientModeSingleCamera(t *testing.T) {
	a, devices := newTestApp(t, `{
  "team": 4662,
  "cameras": [{"name": "Target", "path": "0"}],
  "vision": {"table": "limelight"}
}`)
	assert.Len(t, devices, 1)
	assert.Nil(t, a.Runner().Secondary)
	assert.Nil(t, a.tableSrv)
	assert.Nil(t, a.tableWeb)
	require.NotNil(t, a.tableClient)
	assert.False(t, a.Status().TableConnected)

	a.Runner().Cycle()
	_, ok := a.Store().Get("/limelight/targetCount")
	assert.True(t, ok)
}

func TestApp_InitOpenFailureClosesDevices(t *testing.T) {
	a, err := New(loadConfig(t, serverConfig), log.Discard())
	require.NoError(t, err)

	var opened []*fakeSource
	a.Open = func(cfg camera.Config, _ *slog.Logger) (Device, error) {
		if cfg.Name == "Driver" {
			return nil, errors.New("no such device")
		}
		src := &fakeSource{}
		opened = append(opened, src)
		return src, nil
	}

	err = a.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such device")
	require.Len(t, opened, 1)
	assert.True(t, opened[0].closed)
}

func TestApp_ShutdownIdempotent(t *testing.T) {
	a, devices := newTestApp(t, serverConfig)
	a.Shutdown()
	a.Shutdown()
	for name, d := range devices {
		assert.True(t, d.closed, name)
	}
}
