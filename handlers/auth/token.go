package auth

import (
	"time"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/utils/middleware"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/gofiber/fiber/v2"
)

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// RefreshToken handles POST /api/v1/auth/refresh. The presented refresh
// token is revoked so each one works once.
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	claims, err := h.jwtManager.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return response.Unauthorized(c, "Invalid or expired refresh token")
	}

	ctx := c.UserContext()
	isRevoked, err := h.blacklistService.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check token status")
	}
	if isRevoked {
		return response.Unauthorized(c, "Token has been revoked")
	}

	var user model.User
	if err := h.db.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		return response.Unauthorized(c, "User not found")
	}
	if user.TokenVersion != claims.TokenVersion {
		return response.Unauthorized(c, "Token has been invalidated")
	}

	p, err := h.ensureActive(c, &user, "")
	if err != nil {
		return h.profileError(c, err)
	}

	if claims.ExpiresAt != nil {
		if err := h.blacklistService.RevokeToken(ctx, claims.ID, user.ID, claims.ExpiresAt.Time, "refreshed"); err != nil {
			return response.InternalServerError(c, "Failed to rotate refresh token")
		}
	}
	return h.issue(c, fiber.StatusOK, &user, p)
}

// Logout handles POST /api/v1/auth/logout. It blacklists the access token and,
// when given, the refresh token.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	ctx := c.UserContext()

	expiresAt := time.Now().Add(24 * time.Hour)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := h.blacklistService.RevokeToken(ctx, claims.ID, claims.UserID, expiresAt, "logout"); err != nil {
		return response.InternalServerError(c, "Failed to logout")
	}

	var req LogoutRequest
	if err := c.BodyParser(&req); err == nil && req.RefreshToken != "" {
		if refresh, err := h.jwtManager.ValidateRefreshToken(req.RefreshToken); err == nil &&
			refresh.UserID == claims.UserID && refresh.ExpiresAt != nil {
			_ = h.blacklistService.RevokeToken(ctx, refresh.ID, refresh.UserID, refresh.ExpiresAt.Time, "logout")
		}
	}

	return response.SuccessWithMessage(c, "Logged out successfully", nil)
}
