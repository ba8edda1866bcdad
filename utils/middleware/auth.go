package middleware

import (
	"errors"
	"strings"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/services/profile"
	"github.com/campusflow/campus-flow-api/utils/auth"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	CodeAccountBanned      = "ACCOUNT_BANNED"
	CodeOnboardingRequired = "ONBOARDING_REQUIRED"
	OnboardingPath         = "/onboarding"
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtManager       *auth.JWTManager
	blacklistService *auth.BlacklistService
	profiles         *profile.Service
	db               *gorm.DB
}

func NewAuthMiddleware(jwtManager *auth.JWTManager, db *gorm.DB, profiles *profile.Service) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager:       jwtManager,
		blacklistService: auth.NewBlacklistService(db),
		profiles:         profiles,
		db:               db,
	}
}

// bearerToken reads the Authorization header, or the access_token query
// parameter for EventSource clients that cannot set headers.
func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		if token := c.Query("access_token"); token != "" {
			return token, true
		}
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// authenticate runs every check and stores the identity in locals. The
// returned error is already written to the response.
func (m *AuthMiddleware) authenticate(c *fiber.Ctx) (bool, error) {
	tokenString, ok := bearerToken(c)
	if !ok {
		return false, response.Unauthorized(c, "Missing authorization token")
	}

	claims, err := m.jwtManager.ValidateToken(tokenString)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			return false, response.Unauthorized(c, "Token has expired")
		}
		return false, response.Unauthorized(c, "Invalid token")
	}
	if claims.TokenType != auth.TokenTypeAccess {
		return false, response.Unauthorized(c, "Invalid token type")
	}

	isRevoked, err := m.blacklistService.IsTokenRevoked(c.UserContext(), claims.ID)
	if err != nil {
		return false, response.InternalServerError(c, "Failed to check token status")
	}
	if isRevoked {
		return false, response.Unauthorized(c, "Token has been revoked")
	}

	var user model.User
	if err := m.db.WithContext(c.UserContext()).First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, response.Unauthorized(c, "User not found")
		}
		return false, response.InternalServerError(c, "Failed to load user")
	}
	if user.TokenVersion != claims.TokenVersion {
		return false, response.Unauthorized(c, "Token has been invalidated")
	}

	p, err := m.profiles.GetOrCreate(c.UserContext(), user.ID, "")
	if err != nil {
		return false, response.InternalServerError(c, "Failed to load profile")
	}
	if err := m.profiles.EnsureActive(c.UserContext(), p); err != nil {
		return false, response.Error(c, fiber.StatusForbidden, "Your account has been banned", CodeAccountBanned)
	}

	c.Locals("user_id", user.ID)
	c.Locals("user_email", user.Email)
	// the profile row is authoritative; the claim may predate a role change
	c.Locals("user_role", p.Role)
	c.Locals("claims", claims)
	c.Locals("user", &user)
	c.Locals("profile", p)
	c.Locals("token_jti", claims.ID)
	return true, nil
}

// Required is middleware that requires a valid JWT token
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ok, err := m.authenticate(c); !ok {
			return err
		}
		return c.Next()
	}
}

// RequireRole is middleware that requires specific user role
func (m *AuthMiddleware) RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := GetUserRole(c)
		if !ok {
			return response.Forbidden(c, "Access denied")
		}
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return response.Forbidden(c, "Insufficient permissions")
	}
}

// RequireAdmin authenticates and checks for admin or superadmin
func (m *AuthMiddleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ok, err := m.authenticate(c); !ok {
			return err
		}
		if !IsAdmin(c) {
			return response.Forbidden(c, "Admin access required")
		}
		return c.Next()
	}
}

// RequireOnboarding sends users without an academic selection to the
// onboarding screen. Admins pass through.
func RequireOnboarding() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := GetProfile(c)
		if !ok {
			return response.Unauthorized(c, "")
		}
		if !p.Onboarded() && !p.IsAdmin() {
			return response.ErrorWithRedirect(c, fiber.StatusForbidden,
				"Complete onboarding to continue", CodeOnboardingRequired, OnboardingPath)
		}
		return c.Next()
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("user_id").(uint)
	return id, ok
}

func GetUserRole(c *fiber.Ctx) (string, bool) {
	r, ok := c.Locals("user_role").(string)
	return r, ok
}

func GetUser(c *fiber.Ctx) (*model.User, bool) {
	u, ok := c.Locals("user").(*model.User)
	return u, ok
}

func GetProfile(c *fiber.Ctx) (*model.Profile, bool) {
	p, ok := c.Locals("profile").(*model.Profile)
	return p, ok
}

func GetClaims(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals("claims").(*auth.Claims)
	return claims, ok
}

// IsAdmin reports whether the authenticated caller is admin or superadmin
func IsAdmin(c *fiber.Ctx) bool {
	p, ok := GetProfile(c)
	return ok && p.IsAdmin()
}
