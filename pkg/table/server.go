package table

import (
	"log/slog"

	"github.com/teslashibe/frc-vision/internal/log"
	"github.com/teslashibe/frc-vision/pkg/hub"
)

// Server mirrors a Store to every websocket client of a hub and applies
// updates the clients send back.
type Server struct {
	store *Store
	hub   *hub.Hub
	log   *slog.Logger
	unsub func()
}

// NewServer wires store changes into h. The caller runs h.
func NewServer(store *Store, h *hub.Hub, logger *slog.Logger) *Server {
	s := &Server{
		store: store,
		hub:   h,
		log:   log.Or(logger).With("component", "table-server"),
	}
	s.unsub = store.Subscribe(s.onChange)
	return s
}

func (s *Server) onChange(entries []Entry, remote bool) {
	data, err := Encode(OpSet, entries)
	if err != nil {
		s.log.Error("encode update", "error", err)
		return
	}
	// Remote updates are echoed too so every client converges.
	s.hub.Broadcast(hub.UpdateMessage(data))
}

// Serve runs one websocket connection until it closes. The client first
// receives a snapshot of the whole table.
func (s *Server) Serve(conn hub.Conn) {
	client := hub.NewClient(s.hub, conn, s.handle)

	data, err := Encode(OpSnapshot, s.store.Snapshot())
	if err == nil {
		client.Send(hub.UpdateMessage(data))
	}
	client.Run()
}

func (s *Server) handle(data []byte) {
	msg, err := Decode(data)
	if err != nil {
		s.log.Warn("bad message from client", "error", err)
		return
	}
	s.store.Apply(msg.Entries)
}

// Close detaches the server from the store.
func (s *Server) Close() {
	s.unsub()
}
