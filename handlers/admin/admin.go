package admin

import (
	"strconv"

	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/services/admin"
	"github.com/campusflow/campus-flow-api/services/profile"
	"github.com/campusflow/campus-flow-api/services/resources"
	"github.com/campusflow/campus-flow-api/utils/middleware"
	"github.com/campusflow/campus-flow-api/utils/validation"
	"github.com/gofiber/fiber/v2"
)

// AdminHandler serves the /api/v1/admin routes. Every route sits behind
// RequireAdmin, so handlers only look up who the admin is.
type AdminHandler struct {
	stats     *admin.StatsService
	audit     *admin.AuditService
	profiles  *profile.Service
	resources *resources.Service
	hub       *realtime.Hub
	validator *validation.Validator
}

func NewAdminHandler(stats *admin.StatsService, audit *admin.AuditService, profiles *profile.Service, res *resources.Service, hub *realtime.Hub) *AdminHandler {
	return &AdminHandler{
		stats:     stats,
		audit:     audit,
		profiles:  profiles,
		resources: res,
		hub:       hub,
		validator: validation.NewValidator(),
	}
}

func actor(c *fiber.Ctx) profile.AuditContext {
	id, _ := middleware.GetUserID(c)
	return profile.AuditContext{
		AdminID:   id,
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

func paramID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
