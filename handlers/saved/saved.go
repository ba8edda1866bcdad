package saved

import (
	"errors"
	"strconv"

	"github.com/campusflow/campus-flow-api/services/library"
	"github.com/campusflow/campus-flow-api/services/resources"
	"github.com/campusflow/campus-flow-api/utils/middleware"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/gofiber/fiber/v2"
)

type SavedHandler struct {
	library   *library.Service
	resources *resources.Service
}

func NewSavedHandler(lib *library.Service, res *resources.Service) *SavedHandler {
	return &SavedHandler{library: lib, resources: res}
}

// ListSaved handles GET /api/v1/saved
func (h *SavedHandler) ListSaved(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	rows, err := h.library.List(c.UserContext(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load saved resources")
	}
	return response.Success(c, rows)
}

// ToggleSaved handles POST /api/v1/saved/:resource_id/toggle
func (h *SavedHandler) ToggleSaved(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	id, err := strconv.ParseUint(c.Params("resource_id"), 10, 32)
	if err != nil || id == 0 {
		return response.BadRequest(c, "Invalid resource ID")
	}

	if _, err := h.resources.Get(c.UserContext(), uint(id), userID, middleware.IsAdmin(c)); err != nil {
		if errors.Is(err, resources.ErrNotFound) {
			return response.NotFound(c, "Resource not found")
		}
		return response.InternalServerError(c, "Failed to load resource")
	}

	saved, err := h.library.Set(userID).Toggle(c.UserContext(), uint(id))
	if err != nil {
		// the rollback toast is already on the user's stream
		return c.Status(fiber.StatusInternalServerError).JSON(response.Response{
			Success: false,
			Data:    fiber.Map{"resource_id": id, "saved": saved},
			Error:   &response.ErrorDetail{Code: "SAVE_FAILED", Message: err.Error()},
		})
	}
	return response.Success(c, fiber.Map{"resource_id": id, "saved": saved})
}
