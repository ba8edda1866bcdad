package admin

import (
	"errors"

	"github.com/campusflow/campus-flow-api/services/resources"
	"github.com/campusflow/campus-flow-api/utils/middleware"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// ModerateRequest is an approve or reject decision
type ModerateRequest struct {
	Action   string `json:"action" validate:"required,oneof=approve reject"`
	Comments string `json:"comments" validate:"max=2000"`
}

// ListPending handles GET /api/v1/admin/resources/pending
func (h *AdminHandler) ListPending(c *fiber.Ctx) error {
	items, err := h.resources.Pending(c.UserContext())
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch pending resources")
	}
	return response.Success(c, items)
}

// ModerateResource handles POST /api/v1/admin/resources/:id/moderate
func (h *AdminHandler) ModerateResource(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return response.BadRequest(c, "Invalid resource ID")
	}
	var req ModerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	adminID, _ := middleware.GetUserID(c)
	r, err := h.resources.Moderate(c.UserContext(), id, adminID, resources.ModerateInput{
		Approve:  req.Action == "approve",
		Comments: req.Comments,
	})
	if err != nil {
		switch {
		case errors.Is(err, resources.ErrNotFound):
			return response.NotFound(c, "Resource not found")
		case errors.Is(err, resources.ErrNotPending):
			return response.Conflict(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to moderate resource")
	}
	return response.SuccessWithMessage(c, "Resource "+string(r.Status), r)
}
