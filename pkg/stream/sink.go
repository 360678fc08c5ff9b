// Package stream turns processed frames into JPEG streams for dashboards.
package stream

import (
	"bytes"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"

	"github.com/teslashibe/frc-vision/internal/log"
	"github.com/teslashibe/frc-vision/pkg/hub"
	"github.com/teslashibe/frc-vision/pkg/vision"
)

// Config controls the encoded output.
type Config struct {
	Width   int // output size, 0 keeps the frame size
	Height  int
	Quality int // JPEG quality 1-100
}

// Sink holds the latest JPEG for one camera and wakes up waiting readers
// when a new one arrives. Optional hub receives every frame as a binary
// websocket message.
type Sink struct {
	name string
	cfg  Config
	hub  *hub.Hub
	log  *slog.Logger

	mu     sync.RWMutex
	latest []byte
	ready  chan struct{} // closed and replaced on every new frame
	at     time.Time

	frames atomic.Uint64
	buf    bytes.Buffer
}

// NewSink creates a sink. h may be nil.
func NewSink(name string, cfg Config, h *hub.Hub, logger *slog.Logger) *Sink {
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 75
	}
	return &Sink{
		name:  name,
		cfg:   cfg,
		hub:   h,
		log:   log.Or(logger).With("component", "stream", "camera", name),
		ready: make(chan struct{}),
	}
}

// Name returns the camera name.
func (s *Sink) Name() string { return s.name }

// Hub returns the websocket hub, or nil.
func (s *Sink) Hub() *hub.Hub { return s.hub }

// PutFrame encodes frame and publishes it. The frame is not retained.
func (s *Sink) PutFrame(frame *vision.Frame) error {
	if err := frame.Check(); err != nil {
		return err
	}

	var img image.Image = frame
	if s.cfg.Width > 0 && s.cfg.Height > 0 && (s.cfg.Width != frame.Width || s.cfg.Height != frame.Height) {
		img = imaging.Resize(frame, s.cfg.Width, s.cfg.Height, imaging.Linear)
	}

	s.buf.Reset()
	if err := imaging.Encode(&s.buf, img, imaging.JPEG, imaging.JPEGQuality(s.cfg.Quality)); err != nil {
		return err
	}
	data := bytes.Clone(s.buf.Bytes())

	s.mu.Lock()
	s.latest = data
	s.at = time.Now()
	close(s.ready)
	s.ready = make(chan struct{})
	s.mu.Unlock()

	s.frames.Add(1)
	if s.hub != nil && s.hub.ClientCount() > 0 {
		s.hub.BroadcastFrame(data)
	}
	return nil
}

// Latest returns the newest JPEG (nil before the first frame) and a channel
// that is closed when a newer one is available.
func (s *Sink) Latest() ([]byte, <-chan struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.ready
}

// Stats is a snapshot of sink counters.
type Stats struct {
	Name      string    `json:"name"`
	Frames    uint64    `json:"frames"`
	LastFrame time.Time `json:"last_frame"`
	Bytes     int       `json:"bytes"`
	Clients   int       `json:"clients"`
	// Skipped counts frames slow websocket viewers did not receive.
	Skipped uint64 `json:"skipped_frames"`
}

// Stats returns the sink counters.
func (s *Sink) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Name:      s.name,
		Frames:    s.frames.Load(),
		LastFrame: s.at,
		Bytes:     len(s.latest),
	}
	if s.hub != nil {
		hs := s.hub.Stats()
		st.Clients = hs.Clients
		st.Skipped = hs.SkippedFrames
	}
	return st
}
