package table

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/teslashibe/frc-vision/internal/errors"
	"github.com/teslashibe/frc-vision/internal/log"
)

// DefaultPort is the port the table websocket listens on.
const DefaultPort = 5810

// DefaultPath is the HTTP path of the table websocket.
const DefaultPath = "/nt"

// TeamAddress returns the robot controller address for an FRC team number,
// 10.TE.AM.2.
func TeamAddress(team int) string {
	return fmt.Sprintf("10.%d.%d.2", team/100, team%100)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	URL           string        // ws://host:port/nt
	RetryInterval time.Duration // minimum time between dial attempts
	DialTimeout   time.Duration
	Logger        *slog.Logger
}

// DefaultClientConfig dials the team's robot controller.
func DefaultClientConfig(team int) ClientConfig {
	return ClientConfig{
		URL:           fmt.Sprintf("ws://%s:%d%s", TeamAddress(team), DefaultPort, DefaultPath),
		RetryInterval: time.Second,
		DialTimeout:   3 * time.Second,
	}
}

// Client keeps a Store in sync with a remote table server, reconnecting
// until its context is cancelled.
type Client struct {
	ID string

	store   *Store
	cfg     ClientConfig
	log     *slog.Logger
	limiter *rate.Limiter
	dialer  websocket.Dialer

	outbox    chan []byte
	connected atomic.Bool
	unsub     func()
}

// NewClient creates a client. Local puts on store are forwarded once Run connects.
func NewClient(store *Store, cfg ClientConfig) *Client {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	c := &Client{
		ID:      uuid.NewString(),
		store:   store,
		cfg:     cfg,
		log:     log.Or(cfg.Logger).With("component", "table-client", "url", cfg.URL),
		limiter: rate.NewLimiter(rate.Every(cfg.RetryInterval), 1),
		dialer:  websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		outbox:  make(chan []byte, 256),
	}
	c.unsub = store.Subscribe(c.onChange)
	return c
}

// Connected reports whether a server connection is live.
func (c *Client) Connected() bool { return c.connected.Load() }

func (c *Client) onChange(entries []Entry, remote bool) {
	if remote || !c.connected.Load() {
		return
	}
	data, err := Encode(OpSet, entries)
	if err != nil {
		c.log.Error("encode update", "error", err)
		return
	}
	select {
	case c.outbox <- data:
	default:
		c.log.Warn("outbox full, dropping update")
	}
}

// Run dials, serves and redials until ctx is done. It returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	defer c.unsub()

	attempt := 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			// Wait fails early when the next slot is past the deadline.
			<-ctx.Done()
			return ctx.Err()
		}
		attempt++

		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, http.Header{"X-Client-Id": []string{c.ID}})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Robot is often not up yet; keep quiet after the first few.
			if attempt <= 3 || attempt%30 == 0 {
				c.log.Warn("connect failed", "attempt", attempt, "error", err)
			}
			continue
		}

		c.log.Info("connected", "attempt", attempt)
		attempt = 0
		err = c.serve(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("connection lost", "error", err)
	}
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	// Drain anything queued while disconnected; the snapshot supersedes it.
	for len(c.outbox) > 0 {
		<-c.outbox
	}
	c.connected.Store(true)
	defer c.connected.Store(false)

	snapshot, err := Encode(OpSnapshot, c.store.Snapshot())
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, snapshot); err != nil {
		return errors.Wrap(err, "send snapshot")
	}

	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			msg, err := Decode(data)
			if err != nil {
				c.log.Warn("bad message from server", "error", err)
				continue
			}
			c.store.Apply(msg.Entries)
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return ctx.Err()
		case err := <-readErr:
			return err
		case data := <-c.outbox:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return errors.Wrap(err, "write update")
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return errors.Wrap(err, "ping")
			}
		}
	}
}
