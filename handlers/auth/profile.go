package auth

import (
	"errors"

	"github.com/campusflow/campus-flow-api/services/profile"
	"github.com/campusflow/campus-flow-api/utils/middleware"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/campusflow/campus-flow-api/utils/validation"
	"github.com/gofiber/fiber/v2"
)

func profileAvatar(url string) profile.UpdateInput {
	return profile.UpdateInput{AvatarURL: &url}
}

// GetProfile handles GET /api/v1/profile
func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	p, ok := middleware.GetProfile(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	return response.Success(c, newUserResponse(user, p))
}

// UpdateProfile handles PUT /api/v1/profile
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req profile.UpdateInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	p, err := h.profiles.Update(c.UserContext(), user.ID, req)
	if err != nil {
		if validation.IsValidationError(err) {
			return response.ValidationError(c, err)
		}
		if errors.Is(err, profile.ErrNotFound) {
			return response.NotFound(c, "Profile not found")
		}
		return response.InternalServerError(c, "Failed to update profile")
	}
	return response.SuccessWithMessage(c, "Profile updated successfully", newUserResponse(user, p))
}
