// Package web serves camera streams, the status API and, in server mode,
// the shared table websocket.
package web

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/frc-vision/internal/log"
	"github.com/teslashibe/frc-vision/pkg/camera"
	"github.com/teslashibe/frc-vision/pkg/stream"
	"github.com/teslashibe/frc-vision/pkg/table"
)

// Status is what /api/status reports.
type Status struct {
	Team           int            `json:"team"`
	NTMode         string         `json:"ntmode"`
	TableConnected bool           `json:"table_connected"`
	VisionOn       bool           `json:"vision_on"`
	Cycles         uint64         `json:"cycles"`
	Skipped        uint64         `json:"skipped"`
	CaptureErrors  uint64         `json:"capture_errors"`
	TargetFound    bool           `json:"target_found"`
	TargetCount    int            `json:"target_count"`
	BoundingRect   [4]float64     `json:"bounding_rect_xywh"`
	TargetOffset   float64        `json:"target_offset"`
	Distance       float64        `json:"distance"`
	Streams        []stream.Stats `json:"streams"`
	UptimeSeconds  float64        `json:"uptime_seconds"`
}

// Server is the HTTP server.
type Server struct {
	app    *fiber.App
	listen string
	log    *slog.Logger

	mu       sync.RWMutex
	sinks    map[string]*stream.Sink
	order    []string
	cameras  map[string]*camera.Manager
	store    *table.Store
	tableSrv *table.Server

	// done is closed on Shutdown to end open MJPEG responses
	done     chan struct{}
	doneOnce sync.Once

	// OnStatus supplies the status document
	OnStatus func() Status
}

// NewServer creates a server listening on listen, e.g. ":1181".
func NewServer(listen string, logger *slog.Logger) *Server {
	s := &Server{
		listen:  listen,
		log:     log.Or(logger).With("component", "web"),
		sinks:   make(map[string]*stream.Sink),
		cameras: make(map[string]*camera.Manager),
		done:    make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "frc-vision",
		DisableStartupMessage: true,
		UnescapePath:          true, // camera names like "rPi Camera 0" arrive percent-encoded
	})

	// Dashboards run from other hosts on the field network
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/table", s.handleGetTable)
	api.Post("/table", s.handlePutTable)
	api.Get("/cameras", s.handleListCameras)
	api.Patch("/cameras/:name", s.handleUpdateCamera)

	// Streams
	app.Get("/stream/:name", s.handleMJPEG)
	app.Get("/snapshot/:name", s.handleSnapshot)

	// WebSocket upgrade middleware
	upgrade := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
	app.Use("/ws", upgrade)
	app.Use(table.DefaultPath, upgrade)

	// WebSocket routes
	app.Get("/ws/stream/:name", s.streamLookup, websocket.New(s.handleStreamWS))
	app.Get(table.DefaultPath, s.tableLookup, websocket.New(s.handleTableWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// AddStream registers a camera sink under its name.
func (s *Server) AddStream(sink *stream.Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sinks[sink.Name()]; !ok {
		s.order = append(s.order, sink.Name())
	}
	s.sinks[sink.Name()] = sink
}

// AddCamera registers a camera manager for runtime tuning.
func (s *Server) AddCamera(m *camera.Manager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cameras[m.Name()] = m
}

// SetTable exposes store over the API. srv, if non-nil, enables the table
// websocket (server mode).
func (s *Server) SetTable(store *table.Store, srv *table.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = store
	s.tableSrv = srv
}

// Streams returns stats for every registered sink, in registration order.
func (s *Server) Streams() []stream.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]stream.Stats, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.sinks[name].Stats())
	}
	return out
}

func (s *Server) sink(name string) *stream.Sink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sinks[name]
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.log.Info("web server listening", "addr", s.listen)
	return s.app.Listen(s.listen)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.log.Error("web server stopped", "error", err)
		}
	}()
}

// Shutdown ends open streams and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.doneOnce.Do(func() { close(s.done) })
	return s.app.ShutdownWithContext(ctx)
}
