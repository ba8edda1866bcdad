package admin

import (
	"errors"
	"strconv"

	"github.com/campusflow/campus-flow-api/services/admin"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// ListAuditLogs handles GET /api/v1/admin/audit
func (h *AdminHandler) ListAuditLogs(c *fiber.Ctx) error {
	page, limit, _ := response.PageParams(c)
	f := admin.AuditFilter{
		Action: c.Query("action"),
		Target: c.Query("target"),
		Page:   page,
		Limit:  limit,
	}
	if raw := c.Query("admin_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return response.BadRequest(c, "Invalid admin_id")
		}
		f.AdminID = uint(id)
	}
	if raw := c.Query("target_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return response.BadRequest(c, "Invalid target_id")
		}
		f.TargetID = uint(id)
	}

	entries, total, err := h.audit.List(c.UserContext(), f)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch audit logs")
	}
	return response.Paginated(c, entries, response.CalculatePagination(page, limit, total))
}

// GetAuditLog handles GET /api/v1/admin/audit/:id
func (h *AdminHandler) GetAuditLog(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return response.BadRequest(c, "Invalid audit log ID")
	}
	entry, err := h.audit.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, admin.ErrAuditNotFound) {
			return response.NotFound(c, "Audit log not found")
		}
		return response.InternalServerError(c, "Failed to fetch audit log")
	}
	return response.Success(c, entry)
}
