package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	authhandlers "github.com/campusflow/campus-flow-api/handlers/auth"
	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/services/profile"
	authutil "github.com/campusflow/campus-flow-api/utils/auth"
	"github.com/campusflow/campus-flow-api/utils/cache"
	"github.com/campusflow/campus-flow-api/utils/middleware"
	"github.com/campusflow/campus-flow-api/utils/testdb"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeGoogle struct {
	identity *authutil.GoogleIdentity
}

func (f fakeGoogle) Verify(_ context.Context, idToken string) (*authutil.GoogleIdentity, error) {
	if idToken != "good" {
		return nil, authutil.ErrInvalidGoogleToken
	}
	return f.identity, nil
}

type result struct {
	Success bool `json:"success"`
	Data    struct {
		User struct {
			ID      uint `json:"id"`
			Profile struct {
				FullName  string `json:"full_name"`
				Role      string `json:"role"`
				AvatarURL string `json:"avatar_url"`
			} `json:"profile"`
		} `json:"user"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		Onboarded    bool   `json:"onboarded"`
	} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

// userResult is the envelope of the profile endpoints, whose data is the user itself
type userResult struct {
	Success bool `json:"success"`
	Data    struct {
		ID      uint `json:"id"`
		Profile struct {
			FullName  string `json:"full_name"`
			AvatarURL string `json:"avatar_url"`
		} `json:"profile"`
	} `json:"data"`
}

type server struct {
	app *fiber.App
	db  *gorm.DB
}

func newServer(t *testing.T) *server {
	authutil.BcryptCost = 4
	db := testdb.New(t)
	jwt := authutil.NewJWTManager(authutil.JWTConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"})
	profiles := profile.NewService(db, nil, realtime.NopPublisher{})
	google := fakeGoogle{identity: &authutil.GoogleIdentity{
		Subject: "g-123", Email: "Gina@Example.com", Name: "Gina", Picture: "https://img.example.com/g.png",
	}}
	h := authhandlers.NewAuthHandler(db, jwt, middleware.NewBruteForceProtection(cache.NewMemoryCache()), google, profiles)
	mw := middleware.NewAuthMiddleware(jwt, db, profiles)

	app := fiber.New()
	app.Post("/register", h.Register)
	app.Post("/login", h.Login)
	app.Post("/google", h.GoogleLogin)
	app.Post("/refresh", h.RefreshToken)
	app.Post("/logout", mw.Required(), h.Logout)
	app.Get("/profile", mw.Required(), h.GetProfile)
	app.Put("/profile", mw.Required(), h.UpdateProfile)
	return &server{app: app, db: db}
}

func (s *server) call(t *testing.T, method, path, token string, body interface{}) (int, result) {
	t.Helper()
	var out result
	status := s.callInto(t, method, path, token, body, &out)
	return status, out
}

func (s *server) callInto(t *testing.T, method, path, token string, body interface{}, out interface{}) int {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestRegisterLoginRefreshLogout(t *testing.T) {
	s := newServer(t)
	creds := map[string]string{"email": "Ana@Example.com", "password": "Str0ng!pass", "full_name": "Ana"}

	status, reg := s.call(t, fiber.MethodPost, "/register", "", creds)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, model.RoleStudent, reg.Data.User.Profile.Role)
	assert.False(t, reg.Data.Onboarded)

	status, _ = s.call(t, fiber.MethodPost, "/register", "", creds)
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = s.call(t, fiber.MethodPost, "/login", "", map[string]string{"email": "ana@example.com", "password": "wrong-pass"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, login := s.call(t, fiber.MethodPost, "/login", "", map[string]string{"email": "ana@example.com", "password": "Str0ng!pass"})
	require.Equal(t, fiber.StatusOK, status)
	require.NotEmpty(t, login.Data.AccessToken)

	status, refreshed := s.call(t, fiber.MethodPost, "/refresh", "", map[string]string{"refresh_token": login.Data.RefreshToken})
	require.Equal(t, fiber.StatusOK, status)

	// refresh tokens are single use
	status, _ = s.call(t, fiber.MethodPost, "/refresh", "", map[string]string{"refresh_token": login.Data.RefreshToken})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = s.call(t, fiber.MethodPost, "/logout", refreshed.Data.AccessToken, map[string]string{})
	require.Equal(t, fiber.StatusOK, status)
	status, _ = s.call(t, fiber.MethodGet, "/profile", refreshed.Data.AccessToken, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestWeakPasswordIsRejected(t *testing.T) {
	s := newServer(t)
	status, out := s.call(t, fiber.MethodPost, "/register", "", map[string]string{"email": "a@example.com", "password": "12345678", "full_name": "Ana"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "WEAK_PASSWORD", out.Error.Code)
}

func TestBannedAccountCannotLogin(t *testing.T) {
	s := newServer(t)
	creds := map[string]string{"email": "b@example.com", "password": "Str0ng!pass", "full_name": "Ben"}
	_, reg := s.call(t, fiber.MethodPost, "/register", "", creds)
	require.NoError(t, s.db.Model(&model.Profile{}).Where("id = ?", reg.Data.User.ID).Update("is_banned", true).Error)

	status, out := s.call(t, fiber.MethodPost, "/login", "", creds)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, middleware.CodeAccountBanned, out.Error.Code)

	// the registration tokens were invalidated by the version bump
	status, _ = s.call(t, fiber.MethodGet, "/profile", reg.Data.AccessToken, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestGoogleSignInCreatesThenReusesAccount(t *testing.T) {
	s := newServer(t)

	status, _ := s.call(t, fiber.MethodPost, "/google", "", map[string]string{"id_token": "bad"})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, first := s.call(t, fiber.MethodPost, "/google", "", map[string]string{"id_token": "good"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Gina", first.Data.User.Profile.FullName)
	assert.Equal(t, "https://img.example.com/g.png", first.Data.User.Profile.AvatarURL)

	status, second := s.call(t, fiber.MethodPost, "/google", "", map[string]string{"id_token": "good"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, first.Data.User.ID, second.Data.User.ID)

	var user model.User
	require.NoError(t, s.db.First(&user, first.Data.User.ID).Error)
	assert.Equal(t, "gina@example.com", user.Email)
	assert.Equal(t, model.ProviderGoogle, user.Provider)
}

func TestUpdateProfile(t *testing.T) {
	s := newServer(t)
	_, reg := s.call(t, fiber.MethodPost, "/register", "", map[string]string{"email": "c@example.com", "password": "Str0ng!pass", "full_name": "Cy"})

	var updated userResult
	status := s.callInto(t, fiber.MethodPut, "/profile", reg.Data.AccessToken, map[string]string{"full_name": "Cyrus"}, &updated)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, reg.Data.User.ID, updated.Data.ID)
	assert.Equal(t, "Cyrus", updated.Data.Profile.FullName)

	var fetched userResult
	status = s.callInto(t, fiber.MethodGet, "/profile", reg.Data.AccessToken, nil, &fetched)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Cyrus", fetched.Data.Profile.FullName)

	var stored model.Profile
	require.NoError(t, s.db.First(&stored, reg.Data.User.ID).Error)
	assert.Equal(t, "Cyrus", stored.FullName)

	status, _ = s.call(t, fiber.MethodPut, "/profile", reg.Data.AccessToken, map[string]string{"avatar_url": "nope"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
}
