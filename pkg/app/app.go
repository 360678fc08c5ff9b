// Package app wires cameras, the vision pipeline, the shared table and the
// web server into the coprocessor service.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/teslashibe/frc-vision/internal/config"
	"github.com/teslashibe/frc-vision/internal/errors"
	"github.com/teslashibe/frc-vision/internal/log"
	"github.com/teslashibe/frc-vision/pkg/camera"
	"github.com/teslashibe/frc-vision/pkg/hub"
	"github.com/teslashibe/frc-vision/pkg/stream"
	"github.com/teslashibe/frc-vision/pkg/table"
	"github.com/teslashibe/frc-vision/pkg/vision"
	"github.com/teslashibe/frc-vision/pkg/vision/opencv"
	"github.com/teslashibe/frc-vision/pkg/web"
)

// Device is an open capture device.
type Device interface {
	Source
	Apply(cfg camera.Config) error
	Close() error
}

// Opener opens a capture device for cfg.
type Opener func(cfg camera.Config, logger *slog.Logger) (Device, error)

// OpenCamera opens a USB camera through OpenCV.
func OpenCamera(cfg camera.Config, logger *slog.Logger) (Device, error) {
	src, err := camera.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// App is the coprocessor service.
type App struct {
	cfg  *config.Config
	base *slog.Logger // handed to components, which add their own "component"
	log  *slog.Logger

	// Open replaces the camera opener, mainly for tests.
	Open Opener

	store       *table.Store
	view        *table.View
	tableHub    *hub.Hub
	tableSrv    *table.Server
	tableClient *table.Client
	tableWeb    *web.Server // table on server.tablePort in server mode

	devices    []Device
	managers   []*camera.Manager
	sinks      []*stream.Sink
	streamHubs []*hub.Hub
	extractor  vision.Extractor
	runner     *Runner
	webServer  *web.Server

	started      time.Time
	shutdownOnce sync.Once
}

// New creates an app for a loaded configuration.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.InvalidConfigf("no configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := log.Or(logger)
	return &App{
		cfg:  cfg,
		base: base,
		log:  base.With("component", "app"),
		Open: OpenCamera,
	}, nil
}

// Init builds every component. Call it after New and before Run.
func (a *App) Init() error {
	a.initTable()
	a.webServer = web.NewServer(a.cfg.Server.Listen, a.base)
	a.webServer.SetTable(a.store, a.tableSrv)
	a.webServer.OnStatus = a.Status
	if addr := a.cfg.TableListen(); addr != "" && a.tableSrv != nil {
		a.tableWeb = web.NewServer(addr, a.base)
		a.tableWeb.SetTable(a.store, a.tableSrv)
		a.tableWeb.OnStatus = a.Status
	}

	cams, err := a.initCameras()
	if err != nil {
		a.Shutdown()
		return errors.Wrap(err, "cameras")
	}

	p, err := a.initPipeline()
	if err != nil {
		a.Shutdown()
		return errors.Wrap(err, "pipeline")
	}

	var secondary *Camera
	if len(cams) > 1 {
		secondary = cams[1]
	}
	a.runner = NewRunner(cams[0], secondary, p, vision.NewPublisher(a.view), a.base)
	a.runner.VisionDefault = a.cfg.Vision.EnabledDefault

	a.log.Info("initialized",
		"team", a.cfg.Team,
		"ntmode", a.cfg.NTMode,
		"cameras", len(cams),
		"extractor", a.cfg.Vision.Extractor,
		"table", a.view.Prefix())
	return nil
}

func (a *App) initTable() {
	a.store = table.NewStore()
	a.view = a.store.Sub(a.cfg.Vision.Table)

	// Expose the switch so dashboards can flip it before the robot does.
	if _, ok := a.view.Get(vision.KeyVisionOn); !ok {
		a.view.Put(table.Entry{Key: vision.KeyVisionOn, Value: table.Boolean(a.cfg.Vision.EnabledDefault)})
	}

	switch a.cfg.NTMode {
	case config.ModeServer:
		a.tableHub = hub.New("table")
		a.tableSrv = table.NewServer(a.store, a.tableHub, a.base)
		a.log.Info("table server mode", "path", table.DefaultPath)
	default:
		cc := table.DefaultClientConfig(a.cfg.Team)
		cc.URL = a.cfg.TableURL()
		cc.Logger = a.base
		a.tableClient = table.NewClient(a.store, cc)
		a.log.Info("table client mode", "url", cc.URL)
	}
}

func (a *App) initCameras() ([]*Camera, error) {
	cfgs := []camera.Config{a.cfg.Primary()}
	if sec, ok := a.cfg.Secondary(); ok {
		cfgs = append(cfgs, sec)
	}

	cams := make([]*Camera, 0, len(cfgs))
	for _, cc := range cfgs {
		dev, err := a.Open(cc, a.base)
		if err != nil {
			return nil, err
		}
		a.devices = append(a.devices, dev)

		m := camera.NewManager(cc)
		m.OnConfigChange = dev.Apply
		a.managers = append(a.managers, m)
		a.webServer.AddCamera(m)

		h := hub.New("stream-" + cc.Name)
		a.streamHubs = append(a.streamHubs, h)
		sink := stream.NewSink(cc.Name, stream.Config{
			Width:   cc.Stream.Width,
			Height:  cc.Stream.Height,
			Quality: cc.Stream.Quality,
		}, h, a.base)
		a.sinks = append(a.sinks, sink)
		a.webServer.AddStream(sink)

		a.store.Put(table.Entry{
			Key:   table.Key("CameraPublisher", cc.Name, "streams"),
			Value: table.StringArray([]string{a.streamURL(cc.Name)}),
		})

		cams = append(cams, &Camera{
			Name:   cc.Name,
			Source: dev,
			Sink:   sink,
			Frame:  vision.NewFrame(cc.Width, cc.Height),
		})
	}
	return cams, nil
}

// streamURL is the MJPEG URL advertised for a camera, in the
// "mjpg:http://host:port/stream/name" form dashboards expect.
func (a *App) streamURL(name string) string {
	return fmt.Sprintf("mjpg:http://%s:%s/stream/%s",
		a.cfg.AdvertiseHost(), a.cfg.ListenPort(), url.PathEscape(name))
}

func (a *App) initPipeline() (*vision.Pipeline, error) {
	vc := a.cfg.Vision

	switch vc.Extractor {
	case config.ExtractorOpenCV:
		a.extractor = opencv.New(vc.Filter)
	default:
		a.extractor = vision.NewBlobFilter(vc.Filter)
	}

	primary := a.cfg.Primary()
	sel, err := vision.NewSelector(vision.SelectionPolicy(vc.Selection), vision.BoxMode(vc.BoxMode), primary.Width)
	if err != nil {
		return nil, err
	}
	est, err := vision.NewEstimator(a.cfg.Calibration())
	if err != nil {
		return nil, err
	}
	ann := vision.NewAnnotator()
	if r := vc.Reticle.Rect(); !r.Empty() {
		ann.Reticle = r
	}
	return vision.NewPipeline(a.extractor, sel, est, ann, a.base)
}

// Run starts the web server and the table connection, then runs the vision
// loop until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.runner == nil {
		return errors.New("app: Run called before Init")
	}
	a.started = time.Now()

	if a.tableHub != nil {
		go a.tableHub.Run()
	}
	for _, h := range a.streamHubs {
		go h.Run()
	}
	if a.tableClient != nil {
		go func() {
			if err := a.tableClient.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("table client stopped", "error", err)
			}
		}()
	}
	a.webServer.StartAsync()
	if a.tableWeb != nil {
		a.tableWeb.StartAsync()
	}

	err := a.runner.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Shutdown stops the web server and releases every device. Safe to call
// more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		a.log.Info("shutting down")

		for _, srv := range []*web.Server{a.webServer, a.tableWeb} {
			if srv == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := srv.Shutdown(ctx); err != nil {
				a.log.Warn("web server shutdown", "error", err)
			}
			cancel()
		}
		if a.tableSrv != nil {
			a.tableSrv.Close()
		}
		if a.tableHub != nil {
			a.tableHub.Stop()
		}
		for _, h := range a.streamHubs {
			h.Stop()
		}
		for _, d := range a.devices {
			if err := d.Close(); err != nil {
				a.log.Warn("camera close", "error", err)
			}
		}
		if c, ok := a.extractor.(io.Closer); ok {
			if err := c.Close(); err != nil {
				a.log.Warn("extractor close", "error", err)
			}
		}
	})
}

// Runner returns the vision loop, or nil before Init.
func (a *App) Runner() *Runner { return a.runner }

// Store returns the shared table.
func (a *App) Store() *table.Store { return a.store }

// WebServer returns the HTTP server, or nil before Init.
func (a *App) WebServer() *web.Server { return a.webServer }

// Status builds the /api/status document.
func (a *App) Status() web.Status {
	st := web.Status{
		Team:   a.cfg.Team,
		NTMode: a.cfg.NTMode,
	}
	switch {
	case a.tableClient != nil:
		st.TableConnected = a.tableClient.Connected()
	case a.tableSrv != nil:
		st.TableConnected = true
	}
	if a.runner != nil {
		c := a.runner.Counters()
		st.VisionOn = c.VisionOn
		st.Cycles = c.Cycles
		st.Skipped = c.Skipped
		st.CaptureErrors = c.CaptureErrors
		st.TargetFound = c.Last.Found
		st.TargetCount = c.Last.Count
		st.BoundingRect = c.Last.XYWH()
		st.TargetOffset = c.Last.Offset
		st.Distance = c.Last.Distance
	}
	if a.webServer != nil {
		st.Streams = a.webServer.Streams()
	}
	if !a.started.IsZero() {
		st.UptimeSeconds = time.Since(a.started).Seconds()
	}
	return st
}
