package admin

import (
	"github.com/campusflow/campus-flow-api/handlers/stream"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/utils/middleware"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/campusflow/campus-flow-api/utils/sse"
	"github.com/gofiber/fiber/v2"
)

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.stats.Compute(c.UserContext())
	if err != nil {
		return response.InternalServerError(c, "Failed to compute stats")
	}
	return response.Success(c, stats)
}

// StatsFilter passes admin stats and admin toasts, plus the admin's own
// session termination
func StatsFilter(adminID uint) realtime.Filter {
	return func(m realtime.Message) bool {
		switch m.Kind {
		case realtime.KindStats, realtime.KindToast:
			return m.AdminOnly && m.UserID == 0
		case realtime.KindSessionTerminated:
			return m.UserID == adminID
		}
		return false
	}
}

// StreamStats handles GET /api/v1/admin/stats/stream. The current counters
// go out first, then every recount the watcher publishes.
func (h *AdminHandler) StreamStats(c *fiber.Ctx) error {
	adminID, _ := middleware.GetUserID(c)
	stats, err := h.stats.Compute(c.UserContext())
	if err != nil {
		return response.InternalServerError(c, "Failed to compute stats")
	}
	return stream.Serve(c, h.hub, StatsFilter(adminID), &sse.Event{Event: "stats", Data: stats})
}
