package admin

import (
	"errors"
	"strconv"

	"github.com/campusflow/campus-flow-api/services/profile"
	"github.com/campusflow/campus-flow-api/utils/middleware"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// BanRequest carries the optional reason shown in the audit log
type BanRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type RoleRequest struct {
	Role string `json:"role" validate:"required"`
}

func userError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return response.NotFound(c, "User not found")
	case errors.Is(err, profile.ErrSelfAction):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, profile.ErrInvalidRole):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, profile.ErrForbidden):
		return response.Forbidden(c, err.Error())
	}
	return response.InternalServerError(c, "Failed to update user")
}

// ListUsers handles GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	page, limit, offset := response.PageParams(c)
	opts := profile.ListOptions{
		Search: c.Query("search"),
		Role:   c.Query("role"),
		Limit:  limit,
		Offset: offset,
	}
	if raw := c.Query("banned"); raw != "" {
		banned, err := strconv.ParseBool(raw)
		if err != nil {
			return response.BadRequest(c, "banned must be true or false")
		}
		opts.Banned = &banned
	}

	rows, total, err := h.profiles.ListUsers(c.UserContext(), opts)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch users")
	}
	return response.Paginated(c, rows, response.CalculatePagination(page, limit, total))
}

// BanUser handles POST /api/v1/admin/users/:id/ban
func (h *AdminHandler) BanUser(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return response.BadRequest(c, "Invalid user ID")
	}
	var req BanRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	p, err := h.profiles.Ban(c.UserContext(), actor(c), id, req.Reason)
	if err != nil {
		return userError(c, err)
	}
	return response.SuccessWithMessage(c, "User banned", p)
}

// UnbanUser handles POST /api/v1/admin/users/:id/unban
func (h *AdminHandler) UnbanUser(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return response.BadRequest(c, "Invalid user ID")
	}
	p, err := h.profiles.Unban(c.UserContext(), actor(c), id)
	if err != nil {
		return userError(c, err)
	}
	return response.SuccessWithMessage(c, "User unbanned", p)
}

// SetRole handles PUT /api/v1/admin/users/:id/role
func (h *AdminHandler) SetRole(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return response.BadRequest(c, "Invalid user ID")
	}
	var req RoleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	role, _ := middleware.GetUserRole(c)
	p, err := h.profiles.SetRole(c.UserContext(), actor(c), role, id, req.Role)
	if err != nil {
		return userError(c, err)
	}
	return response.SuccessWithMessage(c, "Role updated", p)
}
