package web

import (
	"bufio"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/frc-vision/pkg/hub"
	"github.com/teslashibe/frc-vision/pkg/table"
)

const boundary = "frame"

// handleStatus returns the pipeline status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	var st Status
	if s.OnStatus != nil {
		st = s.OnStatus()
	}
	if st.Streams == nil {
		st.Streams = s.Streams()
	}
	return c.JSON(st)
}

// handleGetTable returns every table entry
func (s *Server) handleGetTable(c *fiber.Ctx) error {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "table not configured"})
	}
	return c.JSON(store.Snapshot())
}

// PutTableRequest is the request body for writing table entries
type PutTableRequest struct {
	Entries []table.Entry `json:"entries"`
}

// handlePutTable writes entries, e.g. to toggle isVisionOn from a browser
func (s *Server) handlePutTable(c *fiber.Ctx) error {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "table not configured"})
	}

	var req PutTableRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	for _, e := range req.Entries {
		if e.Key == "" || !e.Value.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "entries need a key and a known type"})
		}
	}
	store.Put(req.Entries...)
	return c.JSON(fiber.Map{"written": len(req.Entries)})
}

// handleListCameras returns each camera's current settings
func (s *Server) handleListCameras(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]any, 0, len(s.cameras))
	for _, name := range s.order {
		if m, ok := s.cameras[name]; ok {
			out = append(out, m.Settings())
		}
	}
	return c.JSON(out)
}

// handleUpdateCamera changes driver settings of one camera
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	s.mu.RLock()
	m, ok := s.cameras[c.Params("name")]
	s.mu.RUnlock()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown camera"})
	}

	var params map[string]any
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := m.Update(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(m.Settings())
}

// handleSnapshot returns the latest JPEG of one camera
func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	sink := s.sink(c.Params("name"))
	if sink == nil {
		return fiber.ErrNotFound
	}
	data, _ := sink.Latest()
	if data == nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("no frame yet")
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	return c.Send(data)
}

// handleMJPEG streams multipart JPEG until the client leaves or the server stops
func (s *Server) handleMJPEG(c *fiber.Ctx) error {
	sink := s.sink(c.Params("name"))
	if sink == nil {
		return fiber.ErrNotFound
	}

	c.Set(fiber.HeaderContentType, "multipart/x-mixed-replace; boundary="+boundary)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "close")

	done := s.done
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		for {
			data, next := sink.Latest()
			if data != nil {
				if err := writePart(w, data); err != nil {
					return
				}
			}
			select {
			case <-next:
			case <-done:
				return
			}
		}
	})
	return nil
}

// writePart writes one multipart JPEG part and flushes it.
func writePart(w *bufio.Writer, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}

// streamLookup rejects websocket stream requests for unknown cameras before upgrading
func (s *Server) streamLookup(c *fiber.Ctx) error {
	sink := s.sink(c.Params("name"))
	if sink == nil || sink.Hub() == nil {
		return fiber.ErrNotFound
	}
	c.Locals("hub", sink.Hub())
	return c.Next()
}

// handleStreamWS sends binary JPEG frames of one camera
func (s *Server) handleStreamWS(c *websocket.Conn) {
	h, ok := c.Locals("hub").(*hub.Hub)
	if !ok {
		return
	}
	client := hub.NewClient(h, c, nil)
	client.Run()
}

// tableLookup rejects table connections unless this process is the table server
func (s *Server) tableLookup(c *fiber.Ctx) error {
	s.mu.RLock()
	srv := s.tableSrv
	s.mu.RUnlock()
	if srv == nil {
		return fiber.ErrNotFound
	}
	c.Locals("table", srv)
	return c.Next()
}

// handleTableWS mirrors the table to one client
func (s *Server) handleTableWS(c *websocket.Conn) {
	srv, ok := c.Locals("table").(*table.Server)
	if !ok {
		return
	}
	srv.Serve(c)
}
