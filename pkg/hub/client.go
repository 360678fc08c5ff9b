package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Inbound traffic is table updates only, never frames.
	maxMessageSize = 64 * 1024

	// About four seconds of frames at 30 fps.
	sendQueue = 128
)

// Conn is the part of a websocket connection the pumps use. Both the fiber
// and gorilla connections satisfy it.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one websocket peer of a hub.
type Client struct {
	ID string

	hub       *Hub
	conn      Conn
	send      chan Message // closed by the hub
	onMessage func(data []byte)
}

// NewClient registers a client for conn. onMessage, if non-nil, receives
// every inbound text or binary message. If the hub has stopped, the client
// is created already closed and Run returns once conn does.
func NewClient(h *Hub, conn Conn, onMessage func(data []byte)) *Client {
	c := &Client{
		ID:        uuid.NewString(),
		hub:       h,
		conn:      conn,
		send:      make(chan Message, sendQueue),
		onMessage: onMessage,
	}
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
	return c
}

// Send queues msg for this client only. It reports false when the queue is
// full or the client is gone.
func (c *Client) Send(msg Message) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Run pumps messages until the connection closes. Call it from the
// websocket handler; it blocks.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if c.onMessage == nil {
			continue
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			c.onMessage(data)
		}
	}
}

// writePump is the only writer on conn.
func (c *Client) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(frameType(msg.Kind), msg.Data); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func frameType(k Kind) int {
	if k == Frame {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
