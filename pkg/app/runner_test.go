package app

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/frc-vision/internal/errors"
	"github.com/teslashibe/frc-vision/internal/log"
	"github.com/teslashibe/frc-vision/pkg/camera"
	"github.com/teslashibe/frc-vision/pkg/table"
	"github.com/teslashibe/frc-vision/pkg/vision"
)

// fakeSource paints a fixed scene and returns queued timestamps, then
// keeps returning the last one.
type fakeSource struct {
	mu     sync.Mutex
	scene  *vision.Frame
	stamps []uint64
	err    error
	grabs  int
	closed bool
}

func (f *fakeSource) GrabFrame(frame *vision.Frame) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grabs++
	if f.err != nil {
		return 0, f.err
	}
	ts := uint64(f.grabs)
	if len(f.stamps) > 0 {
		ts = f.stamps[0]
		if len(f.stamps) > 1 {
			f.stamps = f.stamps[1:]
		}
	}
	if ts != 0 && f.scene != nil {
		if err := frame.CopyFrom(f.scene); err != nil {
			return 0, err
		}
	}
	return ts, nil
}

func (f *fakeSource) Apply(camera.Config) error { return nil }

func (f *fakeSource) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

type fakeSink struct {
	mu     sync.Mutex
	frames []*vision.Frame
}

func (s *fakeSink) PutFrame(frame *vision.Frame) error {
	cp := vision.NewFrame(frame.Width, frame.Height)
	if err := cp.CopyFrom(frame); err != nil {
		return err
	}
	s.mu.Lock()
	s.frames = append(s.frames, cp)
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func targetScene() *vision.Frame {
	f := vision.NewFrame(160, 120)
	f.Fill(image.Rect(40, 30, 60, 80), vision.Green)
	f.Fill(image.Rect(80, 30, 100, 100), vision.Green)
	return f
}

type runnerFixture struct {
	runner  *Runner
	view    *table.View
	primary *fakeSource
	driver  *fakeSource
	psink   *fakeSink
	dsink   *fakeSink
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	sel, err := vision.NewSelector(vision.SelectFirst, vision.BoxLast, 160)
	require.NoError(t, err)
	est, err := vision.NewEstimator(vision.DefaultCalibration())
	require.NoError(t, err)
	p, err := vision.NewPipeline(vision.NewBlobFilter(vision.DefaultFilterConfig()), sel, est, vision.NewAnnotator(), log.Discard())
	require.NoError(t, err)

	fx := &runnerFixture{
		view:    table.NewStore().Sub("vision"),
		primary: &fakeSource{scene: targetScene()},
		driver:  &fakeSource{},
		psink:   &fakeSink{},
		dsink:   &fakeSink{},
	}
	fx.runner = NewRunner(
		&Camera{Name: "Target", Source: fx.primary, Sink: fx.psink, Frame: vision.NewFrame(160, 120)},
		&Camera{Name: "Driver", Source: fx.driver, Sink: fx.dsink, Frame: vision.NewFrame(160, 120)},
		p, vision.NewPublisher(fx.view), log.Discard(),
	)
	fx.runner.SkipDelay = 0
	return fx
}

func (fx *runnerFixture) boolean(key string) bool {
	return fx.view.GetBoolean(key, false)
}

func (fx *runnerFixture) number(t *testing.T, key string) float64 {
	t.Helper()
	v, ok := fx.view.Get(key)
	require.True(t, ok, "missing %s", key)
	return v.Double
}

func TestRunner_CycleWithVisionOn(t *testing.T) {
	fx := newRunnerFixture(t)
	fx.view.Put(table.Entry{Key: vision.KeyVisionOn, Value: table.Boolean(true)})

	assert.True(t, fx.runner.Cycle())

	assert.True(t, fx.boolean(vision.KeyTargetFound))
	assert.Equal(t, 2.0, fx.number(t, vision.KeyTargetCount))
	assert.InDelta(t, -10.0, fx.number(t, vision.KeyTargetOffset), 1e-9)
	assert.InDelta(t, 13.6, fx.number(t, vision.KeyDistance), 0.05)

	box, ok := fx.view.Get(vision.KeyBoundingRect)
	require.True(t, ok)
	assert.Equal(t, []float64{80, 30, 20, 70}, box.Doubles)

	// Both cameras streamed, and the target frame carries the reticle.
	assert.Equal(t, 1, fx.psink.count())
	assert.Equal(t, 1, fx.dsink.count())
	b, g, r := fx.psink.frames[0].BGR(105, 95)
	assert.Equal(t, vision.Green, vision.BGR{B: b, G: g, R: r})

	c := fx.runner.Counters()
	assert.Equal(t, uint64(1), c.Cycles)
	assert.True(t, c.VisionOn)
	assert.True(t, c.Last.Found)
}

func TestRunner_GatedOffPublishesZeros(t *testing.T) {
	fx := newRunnerFixture(t)

	assert.True(t, fx.runner.Cycle(), "cycle still runs while vision is off")

	assert.False(t, fx.boolean(vision.KeyTargetFound))
	assert.Equal(t, 0.0, fx.number(t, vision.KeyTargetCount))
	assert.Equal(t, 0.0, fx.number(t, vision.KeyDistance))

	// No annotation while gated off.
	b, g, r := fx.psink.frames[0].BGR(105, 95)
	assert.Equal(t, vision.BGR{}, vision.BGR{B: b, G: g, R: r})
	assert.Equal(t, 1, fx.dsink.count())
}

func TestRunner_VisionDefault(t *testing.T) {
	fx := newRunnerFixture(t)
	fx.runner.VisionDefault = true

	fx.runner.Cycle()
	assert.True(t, fx.boolean(vision.KeyTargetFound))
}

func TestRunner_ZeroTimestampSkipsCycle(t *testing.T) {
	fx := newRunnerFixture(t)
	fx.primary.stamps = []uint64{0}

	assert.False(t, fx.runner.Cycle())

	_, ok := fx.view.Get(vision.KeyTargetFound)
	assert.False(t, ok, "nothing published on a skipped cycle")
	assert.Zero(t, fx.psink.count())
	assert.Zero(t, fx.dsink.count())
	assert.Equal(t, 1, fx.driver.grabs, "secondary is still read")

	c := fx.runner.Counters()
	assert.Equal(t, uint64(1), c.Skipped)
	assert.Zero(t, c.Cycles)
}

func TestRunner_CaptureErrorIsAMiss(t *testing.T) {
	fx := newRunnerFixture(t)
	fx.primary.err = errors.New("device unplugged")

	assert.False(t, fx.runner.Cycle())
	assert.False(t, fx.runner.Cycle())

	c := fx.runner.Counters()
	assert.Equal(t, uint64(2), c.CaptureErrors)
	assert.Equal(t, uint64(2), c.Skipped)
}

func TestRunner_SecondaryMissDoesNotSkip(t *testing.T) {
	fx := newRunnerFixture(t)
	fx.driver.err = errors.New("no driver camera")

	assert.True(t, fx.runner.Cycle())
	assert.Equal(t, 1, fx.psink.count())
	assert.Equal(t, 1, fx.dsink.count())
	assert.Equal(t, uint64(1), fx.runner.Counters().CaptureErrors)
}

func TestRunner_NoSecondary(t *testing.T) {
	fx := newRunnerFixture(t)
	fx.runner.Secondary = nil

	assert.True(t, fx.runner.Cycle())
	assert.Equal(t, 1, fx.psink.count())
	assert.Zero(t, fx.driver.grabs)
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	fx := newRunnerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- fx.runner.Run(ctx) }()

	require.Eventually(t, func() bool { return fx.runner.Counters().Cycles >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunner_WarningsThrottledPerCamera(t *testing.T) {
	fx := newRunnerFixture(t)
	var buf bytes.Buffer
	fx.runner.log = slog.New(log.NewHandler(&buf, slog.LevelInfo, true))

	fx.driver.err = errors.New("unplugged")
	require.True(t, fx.runner.Cycle())
	require.True(t, fx.runner.Cycle())

	fx.primary.mu.Lock()
	fx.primary.err = errors.New("unplugged")
	fx.primary.mu.Unlock()
	require.False(t, fx.runner.Cycle())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var target, driver int
	for _, l := range lines {
		if !strings.Contains(l, "capture failed") {
			continue
		}
		switch {
		case strings.Contains(l, `"camera":"Target"`):
			target++
		case strings.Contains(l, `"camera":"Driver"`):
			driver++
		}
	}
	assert.Equal(t, 1, target, "primary warning must not be hidden by the driver camera")
	assert.Equal(t, 1, driver)
}
