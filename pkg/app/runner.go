package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/frc-vision/internal/log"
	"github.com/teslashibe/frc-vision/pkg/vision"
)

// warnEvery limits repeated capture and stream warnings per camera.
const warnEvery = 5 * time.Second

// Source fills a frame from a camera. A zero timestamp means no new frame.
type Source interface {
	GrabFrame(frame *vision.Frame) (uint64, error)
}

// Sink receives every frame after processing.
type Sink interface {
	PutFrame(frame *vision.Frame) error
}

// Camera is one capture source, its reusable frame and its output stream.
type Camera struct {
	Name   string
	Source Source
	Sink   Sink
	Frame  *vision.Frame
}

// Runner executes the capture, detect, publish, stream cycle.
type Runner struct {
	Primary   *Camera
	Secondary *Camera // may be nil

	Pipeline  *vision.Pipeline
	Publisher *vision.Publisher

	// VisionDefault is used when isVisionOn is missing from the table.
	VisionDefault bool

	// SkipDelay is slept after a cycle with no primary frame so a failing
	// camera does not spin the CPU.
	SkipDelay time.Duration

	log   *slog.Logger
	warns map[warnKey]*log.Throttled

	cycles        atomic.Uint64
	skipped       atomic.Uint64
	captureErrors atomic.Uint64
	visionOn      atomic.Bool

	mu   sync.RWMutex
	last vision.Result
}

// NewRunner creates a runner. secondary may be nil.
func NewRunner(primary, secondary *Camera, p *vision.Pipeline, pub *vision.Publisher, logger *slog.Logger) *Runner {
	l := log.Or(logger).With("component", "runner")
	return &Runner{
		Primary:   primary,
		Secondary: secondary,
		Pipeline:  p,
		Publisher: pub,
		SkipDelay: 5 * time.Millisecond,
		log:       l,
		warns:     make(map[warnKey]*log.Throttled),
	}
}

// warnKey gives each camera and failure kind its own throttle.
type warnKey struct {
	camera, what string
}

func (r *Runner) warner(c *Camera, what string) *log.Throttled {
	k := warnKey{c.Name, what}
	t, ok := r.warns[k]
	if !ok {
		t = log.Throttle(r.log, warnEvery)
		r.warns[k] = t
	}
	return t
}

// Cycle runs one iteration. It reports false when the cycle was skipped
// because the primary camera had no frame.
func (r *Runner) Cycle() bool {
	ts := r.grab(r.Primary)
	if r.Secondary != nil {
		r.grab(r.Secondary)
	}

	if ts == 0 {
		r.skipped.Add(1)
		r.log.Debug("no frame from primary camera, skipping cycle")
		return false
	}

	on := r.Publisher.VisionOn(r.VisionDefault)
	r.visionOn.Store(on)

	res, err := r.Pipeline.Process(r.Primary.Frame, on)
	if err != nil {
		r.log.Error("pipeline failed", "error", err)
		res = vision.Result{}
	}
	r.Publisher.Publish(res)

	r.mu.Lock()
	r.last = res
	r.mu.Unlock()

	r.put(r.Primary)
	if r.Secondary != nil {
		r.put(r.Secondary)
	}

	r.cycles.Add(1)
	return true
}

func (r *Runner) grab(c *Camera) uint64 {
	ts, err := c.Source.GrabFrame(c.Frame)
	if err != nil {
		n := r.captureErrors.Add(1)
		r.warner(c, "capture").Warn("capture failed", "camera", c.Name, "error", err, "total", n)
		return 0
	}
	return ts
}

func (r *Runner) put(c *Camera) {
	if c.Sink == nil {
		return
	}
	if err := c.Sink.PutFrame(c.Frame); err != nil {
		r.warner(c, "stream").Warn("stream failed", "camera", c.Name, "error", err)
	}
}

// Run cycles until ctx is cancelled and returns ctx.Err().
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("vision loop started", "primary", r.Primary.Name)
	for {
		if err := ctx.Err(); err != nil {
			r.log.Info("vision loop stopped", "cycles", r.cycles.Load(), "skipped", r.skipped.Load())
			return err
		}
		if !r.Cycle() && r.SkipDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(r.SkipDelay):
			}
		}
	}
}

// Counters is a snapshot of the runner's counters.
type Counters struct {
	Cycles        uint64
	Skipped       uint64
	CaptureErrors uint64
	VisionOn      bool
	Last          vision.Result
}

// Counters returns the current counters and last result.
func (r *Runner) Counters() Counters {
	r.mu.RLock()
	last := r.last
	r.mu.RUnlock()
	return Counters{
		Cycles:        r.cycles.Load(),
		Skipped:       r.skipped.Load(),
		CaptureErrors: r.captureErrors.Load(),
		VisionOn:      r.visionOn.Load(),
		Last:          last,
	}
}
