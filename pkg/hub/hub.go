package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/frc-vision/internal/log"
)

// Hub owns a set of clients. One goroutine (Run) mutates the set; every
// other method is safe for concurrent use.
type Hub struct {
	name string
	log  *slog.Logger

	clients    map[*Client]struct{}
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	done chan struct{}
	stop sync.Once

	mu      sync.RWMutex // guards clients and running for readers
	running bool

	skipped atomic.Uint64
	evicted atomic.Uint64
	dropped atomic.Uint64
}

// Stats are hub counters.
type Stats struct {
	Clients int `json:"clients"`
	// SkippedFrames counts frames a slow client did not receive.
	SkippedFrames uint64 `json:"skipped_frames"`
	// Evicted counts clients disconnected for falling behind on updates.
	Evicted uint64 `json:"evicted"`
	// Dropped counts messages lost because the hub itself was backed up.
	Dropped uint64 `json:"dropped"`
}

// New creates a hub. Call Run in a goroutine.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		log:        log.With("component", "hub", "hub", name),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Name returns the hub name.
func (h *Hub) Name() string { return h.name }

// Run owns the client set until Stop.
func (h *Hub) Run() {
	h.setRunning(true)
	for {
		select {
		case <-h.done:
			h.closeAll()
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c, "disconnected")
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) setRunning(v bool) {
	h.mu.Lock()
	h.running = v
	h.mu.Unlock()
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("client connected", "client", c.ID, "total", n)
}

func (h *Hub) remove(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		h.log.Info("client "+reason, "client", c.ID, "remaining", n)
	}
}

func (h *Hub) fanOut(msg Message) {
	var slow []*Client

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			if msg.Kind == Frame {
				h.skipped.Add(1)
				continue
			}
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.evicted.Add(1)
		h.remove(c, "evicted, send queue full")
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.running = false
	h.mu.Unlock()
}

// Stop ends Run and closes every client. Safe to call more than once.
func (h *Hub) Stop() {
	h.stop.Do(func() { close(h.done) })
}

// Broadcast queues msg for every client. When the hub is backed up the
// message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		if msg.Kind == Update {
			h.log.Warn("broadcast queue full, dropping update")
		}
	}
}

// BroadcastUpdate encodes v as JSON and broadcasts it as an update.
func (h *Hub) BroadcastUpdate(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(UpdateMessage(data))
	return nil
}

// BroadcastFrame broadcasts a JPEG frame.
func (h *Hub) BroadcastFrame(jpeg []byte) {
	h.Broadcast(FrameMessage(jpeg))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Stats returns the hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Clients:       h.ClientCount(),
		SkippedFrames: h.skipped.Load(),
		Evicted:       h.evicted.Load(),
		Dropped:       h.dropped.Load(),
	}
}
