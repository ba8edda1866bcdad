// Package stream serves realtime hub messages over Server-Sent Events.
package stream

import (
	"bufio"
	"strings"
	"time"

	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/utils/middleware"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/campusflow/campus-flow-api/utils/sse"
	"github.com/gofiber/fiber/v2"
)

// DefaultTables are watched when the client does not pass ?tables=
var DefaultTables = []string{
	"resources", "profiles", "notifications", "saved_resources", "mission_assignments",
	"colleges", "courses", "years",
}

var KeepAliveInterval = 25 * time.Second

// Invalidation is the payload of an "invalidate" event
type Invalidation struct {
	Table string             `json:"table"`
	Type  realtime.EventType `json:"type"`
	ID    uint               `json:"id,omitempty"`
}

// Frame maps a hub message to an SSE event name and payload
func Frame(msg realtime.Message) (string, interface{}, bool) {
	switch msg.Kind {
	case realtime.KindChange:
		if msg.Change == nil {
			return "", nil, false
		}
		return "invalidate", Invalidation{Table: msg.Change.Table, Type: msg.Change.Type, ID: msg.Change.RowID}, true
	case realtime.KindToast:
		if msg.Toast == nil {
			return "", nil, false
		}
		return "toast", msg.Toast, true
	case realtime.KindSessionTerminated:
		return "session_terminated", msg.Data, true
	case realtime.KindStats:
		return "stats", msg.Data, true
	}
	return "", nil, false
}

// Serve subscribes before answering and streams until the client goes away
// or the session is terminated. initial, when not nil, is sent right after
// the ready event.
func Serve(c *fiber.Ctx, hub *realtime.Hub, filter realtime.Filter, initial *sse.Event) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("X-Accel-Buffering", "no")

	sub := hub.Subscribe(filter, 64)
	ready := fiber.Map{"instance": hub.InstanceID()}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sub.Close()
		if err := sse.SendReady(w, ready); err != nil {
			return
		}
		if initial != nil {
			if err := sse.Send(w, *initial); err != nil {
				return
			}
		}

		keepAlive := time.NewTicker(KeepAliveInterval)
		defer keepAlive.Stop()
		for {
			select {
			case msg, ok := <-sub.C:
				if !ok {
					return
				}
				name, data, ok := Frame(msg)
				if !ok {
					continue
				}
				if err := sse.Send(w, sse.Event{Event: name, Data: data}); err != nil {
					return
				}
				if msg.Kind == realtime.KindSessionTerminated {
					return
				}
			case <-keepAlive.C:
				if err := sse.SendKeepAlive(w); err != nil {
					return
				}
			}
		}
	})
	return nil
}

type Handler struct {
	hub *realtime.Hub
}

func NewHandler(hub *realtime.Hub) *Handler {
	return &Handler{hub: hub}
}

// Realtime handles GET /api/v1/realtime?tables=resources,notifications
func (h *Handler) Realtime(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	return Serve(c, h.hub, realtime.ForClient(userID, middleware.IsAdmin(c), parseTables(c.Query("tables"))...), nil)
}

func parseTables(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return DefaultTables
	}
	known := make(map[string]bool, len(DefaultTables))
	for _, t := range DefaultTables {
		known[t] = true
	}
	var tables []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); known[t] {
			tables = append(tables, t)
		}
	}
	return tables
}
