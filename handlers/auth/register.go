package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/services/profile"
	authutil "github.com/campusflow/campus-flow-api/utils/auth"
	"github.com/campusflow/campus-flow-api/utils/dberrors"
	"github.com/campusflow/campus-flow-api/utils/middleware"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/campusflow/campus-flow-api/utils/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GoogleVerifier is the part of authutil.GoogleVerifier the handler uses
type GoogleVerifier interface {
	Verify(ctx context.Context, idToken string) (*authutil.GoogleIdentity, error)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	db                   *gorm.DB
	jwtManager           *authutil.JWTManager
	blacklistService     *authutil.BlacklistService
	bruteForceProtection *middleware.BruteForceProtection
	google               GoogleVerifier
	profiles             *profile.Service
	validator            *validation.Validator
}

// NewAuthHandler creates a new auth handler. bruteForce and google may be nil.
func NewAuthHandler(db *gorm.DB, jwtManager *authutil.JWTManager, bruteForce *middleware.BruteForceProtection, google GoogleVerifier, profiles *profile.Service) *AuthHandler {
	return &AuthHandler{
		db:                   db,
		jwtManager:           jwtManager,
		blacklistService:     authutil.NewBlacklistService(db),
		bruteForceProtection: bruteForce,
		google:               google,
		profiles:             profiles,
		validator:            validation.NewValidator(),
	}
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"required,min=2,max=255"`
}

// UserResponse is the signed-in user with their profile
type UserResponse struct {
	ID        uint              `json:"id"`
	Email     string            `json:"email"`
	Provider  string            `json:"provider"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	Profile   *model.Profile    `json:"profile"`
	CreatedAt time.Time         `json:"created_at"`
}

// AuthResponse is returned by register, login, google sign-in and refresh
type AuthResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	// Onboarded is false until the academic selection is saved
	Onboarded bool `json:"onboarded"`
}

func newUserResponse(u *model.User, p *model.Profile) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Provider:  u.Provider,
		Metadata:  u.Metadata,
		Profile:   p,
		CreatedAt: u.CreatedAt,
	}
}

// issue answers with a fresh token pair for an active account
func (h *AuthHandler) issue(c *fiber.Ctx, status int, user *model.User, p *model.Profile) error {
	pair, err := h.jwtManager.GeneratePair(user.ID, user.Email, p.Role, user.TokenVersion)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate tokens")
	}
	return c.Status(status).JSON(response.Response{
		Success: true,
		Data: AuthResponse{
			User:         newUserResponse(user, p),
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			ExpiresAt:    pair.ExpiresAt,
			Onboarded:    p.Onboarded(),
		},
	})
}

// ensureActive loads the profile, self-healing a missing row, and refuses
// banned accounts after revoking their sessions.
func (h *AuthHandler) ensureActive(c *fiber.Ctx, user *model.User, fullName string) (*model.Profile, error) {
	p, err := h.profiles.GetOrCreate(c.UserContext(), user.ID, fullName)
	if err != nil {
		return nil, err
	}
	if err := h.profiles.EnsureActive(c.UserContext(), p); err != nil {
		return nil, err
	}
	return p, nil
}

func (h *AuthHandler) profileError(c *fiber.Ctx, err error) error {
	if errors.Is(err, profile.ErrBanned) {
		return response.Error(c, fiber.StatusForbidden, "Your account has been banned", middleware.CodeAccountBanned)
	}
	return response.InternalServerError(c, "Failed to load profile")
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = validation.SanitizeString(req.FullName)
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	if ok, problems := validation.ValidatePassword(req.Password); !ok {
		return response.ErrorWithDetails(c, fiber.StatusBadRequest, "Password is too weak", "WEAK_PASSWORD", strings.Join(problems, "; "))
	}

	hash, err := authutil.HashPassword(req.Password)
	if err != nil {
		return response.InternalServerError(c, "Failed to hash password")
	}

	user := model.User{Email: req.Email, PasswordHash: hash, Provider: model.ProviderPassword}
	p := model.Profile{FullName: req.FullName, Role: model.RoleStudent}
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		p.ID = user.ID
		return tx.Create(&p).Error
	})
	if err != nil {
		if dberrors.IsDuplicate(err) {
			return response.Conflict(c, "An account with this email already exists")
		}
		return response.InternalServerError(c, "Failed to create account")
	}

	return h.issue(c, fiber.StatusCreated, &user, &p)
}
