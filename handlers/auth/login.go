package auth

import (
	"errors"
	"strings"

	"github.com/campusflow/campus-flow-api/model"
	authutil "github.com/campusflow/campus-flow-api/utils/auth"
	"github.com/campusflow/campus-flow-api/utils/logger"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	ip := c.IP()

	var user model.User
	if err := h.db.WithContext(c.UserContext()).Where("email = ?", email).First(&user).Error; err != nil {
		h.recordFailure(c, ip)
		return response.Unauthorized(c, "Invalid email or password")
	}
	if err := authutil.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		h.recordFailure(c, ip)
		return response.Unauthorized(c, "Invalid email or password")
	}
	if h.bruteForceProtection != nil {
		_ = h.bruteForceProtection.RecordSuccessfulAttempt(c.UserContext(), ip)
	}

	p, err := h.ensureActive(c, &user, "")
	if err != nil {
		return h.profileError(c, err)
	}
	return h.issue(c, fiber.StatusOK, &user, p)
}

func (h *AuthHandler) recordFailure(c *fiber.Ctx, ip string) {
	if h.bruteForceProtection != nil {
		_ = h.bruteForceProtection.RecordFailedAttempt(c.UserContext(), ip)
	}
}

// GoogleLogin handles POST /api/v1/auth/google. The ID token is verified with
// Google; the account is created on first sign-in and linked by email otherwise.
func (h *AuthHandler) GoogleLogin(c *fiber.Ctx) error {
	if h.google == nil {
		return response.ServiceUnavailable(c, "Google sign-in is not configured")
	}
	var req GoogleLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	identity, err := h.google.Verify(c.UserContext(), req.IDToken)
	if err != nil {
		if errors.Is(err, authutil.ErrInvalidGoogleToken) {
			return response.Unauthorized(c, "Invalid Google token")
		}
		logger.Error().Err(err).Msg("google token verification failed")
		return response.ServiceUnavailable(c, "Could not verify Google token")
	}
	email := strings.ToLower(identity.Email)

	var user model.User
	db := h.db.WithContext(c.UserContext())
	err = db.Where("provider_subject = ? AND provider = ?", identity.Subject, model.ProviderGoogle).
		Or("email = ?", email).
		First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = model.User{Email: email, Provider: model.ProviderGoogle, ProviderSubject: identity.Subject}
		if err := db.Create(&user).Error; err != nil {
			return response.InternalServerError(c, "Failed to create account")
		}
	case err != nil:
		return response.InternalServerError(c, "Failed to load account")
	case user.ProviderSubject == "":
		// a password account signing in with Google for the first time
		if err := db.Model(&user).Update("provider_subject", identity.Subject).Error; err != nil {
			return response.InternalServerError(c, "Failed to link Google account")
		}
	}

	p, err := h.ensureActive(c, &user, identity.Name)
	if err != nil {
		return h.profileError(c, err)
	}
	if p.AvatarURL == "" && identity.Picture != "" {
		if updated, err := h.profiles.Update(c.UserContext(), user.ID, profileAvatar(identity.Picture)); err == nil {
			p = updated
		}
	}
	return h.issue(c, fiber.StatusOK, &user, p)
}
