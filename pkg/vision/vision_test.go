package vision

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/frc-vision/internal/log"
	"github.com/teslashibe/frc-vision/pkg/table"
)

// targetFrame is a 160x120 black frame with two green strips, the layout the
// camera sees when centered slightly left of the target.
func targetFrame() *Frame {
	f := NewFrame(160, 120)
	f.Fill(image.Rect(40, 30, 60, 80), Green)   // x=40 y=30 w=20 h=50
	f.Fill(image.Rect(80, 30, 100, 100), Green) // x=80 y=30 w=20 h=70
	return f
}

func rect(x, y, w, h int) Contour {
	return Contour{Rect: image.Rect(x, y, x+w, y+h), Area: float64(w * h)}
}

func newTestPipeline(t *testing.T, ex Extractor) *Pipeline {
	t.Helper()
	sel, err := NewSelector(SelectFirst, BoxLast, 160)
	require.NoError(t, err)
	est, err := NewEstimator(DefaultCalibration())
	require.NoError(t, err)
	p, err := NewPipeline(ex, sel, est, NewAnnotator(), log.Discard())
	require.NoError(t, err)
	return p
}

func TestPipeline_EndToEnd(t *testing.T) {
	p := newTestPipeline(t, NewBlobFilter(DefaultFilterConfig()))
	frame := targetFrame()

	res, err := p.Process(frame, true)
	require.NoError(t, err)

	assert.True(t, res.Found)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, image.Rect(80, 30, 100, 100), res.Box)
	assert.Equal(t, [4]float64{80, 30, 20, 70}, res.XYWH())
	assert.InDelta(t, -10.0, res.Offset, 1e-9)

	want := 5.75 * 120 / (60 * math.Tan(40.2*math.Pi/180))
	assert.InDelta(t, want, res.Distance, 1e-9)
	assert.InDelta(t, 13.6, res.Distance, 0.05)
}

func TestPipeline_GatedOff(t *testing.T) {
	calls := 0
	ex := ExtractorFunc(func(*Frame) ([]Contour, error) {
		calls++
		return []Contour{rect(40, 30, 20, 50), rect(80, 30, 20, 70)}, nil
	})
	p := newTestPipeline(t, ex)

	frame := targetFrame()
	before := append([]byte(nil), frame.Pix...)

	res, err := p.Process(frame, false)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Equal(t, 0, calls, "extractor must not run while vision is off")
	assert.Equal(t, before, frame.Pix, "frame must not be drawn on while vision is off")
}

func TestPipeline_FewerThanTwoBlobs(t *testing.T) {
	tests := []struct {
		name     string
		contours []Contour
	}{
		{"none", nil},
		{"one", []Contour{rect(40, 30, 20, 50)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPipeline(t, ExtractorFunc(func(*Frame) ([]Contour, error) {
				return tc.contours, nil
			}))
			frame := NewFrame(160, 120)

			res, err := p.Process(frame, true)
			require.NoError(t, err)
			assert.Equal(t, Result{}, res)

			// Reticle is still drawn.
			b, g, r := frame.BGR(105, 95)
			assert.Equal(t, [3]uint8{0, 255, 0}, [3]uint8{b, g, r})
		})
	}
}

func TestPipeline_SingleBlobStillAnnotated(t *testing.T) {
	p := newTestPipeline(t, ExtractorFunc(func(*Frame) ([]Contour, error) {
		return []Contour{rect(10, 10, 5, 5)}, nil
	}))
	frame := NewFrame(160, 120)
	_, err := p.Process(frame, true)
	require.NoError(t, err)

	b, g, r := frame.BGR(10, 10)
	assert.Equal(t, [3]uint8{255, 0, 0}, [3]uint8{b, g, r})
}

func TestPipeline_ExtractorError(t *testing.T) {
	p := newTestPipeline(t, NewBlobFilter(DefaultFilterConfig()))
	_, err := p.Process(&Frame{Width: 160, Height: 120}, true)
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestNewPipeline_RequiresStages(t *testing.T) {
	_, err := NewPipeline(nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestPublisher_WritesAllKeys(t *testing.T) {
	store := table.NewStore()
	pub := NewPublisher(store.Sub("vision"))

	pub.Publish(Result{})
	snap := store.Snapshot()
	require.Len(t, snap, 5)

	v, ok := store.Get("/vision/isTargetFound")
	require.True(t, ok)
	assert.False(t, v.Bool)

	v, _ = store.Get("/vision/boundingRectxywh")
	assert.Equal(t, []float64{0, 0, 0, 0}, v.Doubles)

	v, _ = store.Get("/vision/distanceToTarget")
	assert.Equal(t, table.TypeDouble, v.Type)
	assert.Zero(t, v.Double)
}

func TestPublisher_Idempotent(t *testing.T) {
	store := table.NewStore()
	pub := NewPublisher(store.Sub("vision"))
	res := Result{Found: true, Count: 2, Box: image.Rect(80, 30, 100, 100), Offset: -10, Distance: 13.6}

	pub.Publish(res)
	first := store.Snapshot()
	pub.Publish(res)
	second := store.Snapshot()

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Key, second[i].Key)
		assert.True(t, first[i].Value.Equal(second[i].Value), first[i].Key)
	}
}

func TestPublisher_SingleUpdatePerCycle(t *testing.T) {
	store := table.NewStore()
	updates := 0
	store.Subscribe(func([]table.Entry, bool) { updates++ })

	NewPublisher(store.Sub("vision")).Publish(Result{Found: true, Count: 2})
	assert.Equal(t, 1, updates)
}

func TestPublisher_VisionOn(t *testing.T) {
	store := table.NewStore()
	pub := NewPublisher(store.Sub("vision"))
	assert.False(t, pub.VisionOn(false))

	store.Put(table.Entry{Key: "/vision/isVisionOn", Value: table.Boolean(true)})
	assert.True(t, pub.VisionOn(false))
}
