package admin

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/services/admin"
	"github.com/campusflow/campus-flow-api/services/profile"
	"github.com/campusflow/campus-flow-api/services/resources"
	"github.com/campusflow/campus-flow-api/utils/testdb"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type env struct {
	db       *gorm.DB
	app      *fiber.App
	student  model.Profile
	admin    model.Profile
	super    model.Profile
	resource model.Resource
}

func seedProfile(t *testing.T, db *gorm.DB, email, name, role string) model.Profile {
	t.Helper()
	u := model.User{Email: email, Provider: model.ProviderPassword}
	require.NoError(t, db.Create(&u).Error)
	p := model.Profile{ID: u.ID, FullName: name, Role: role}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testdb.New(t)
	e := &env{db: db}
	e.student = seedProfile(t, db, "asha@example.com", "Asha", model.RoleStudent)
	e.admin = seedProfile(t, db, "admin@example.com", "Admin", model.RoleAdmin)
	e.super = seedProfile(t, db, "root@example.com", "Root", model.RoleSuperAdmin)

	college := model.College{Name: "COEP"}
	require.NoError(t, db.Create(&college).Error)
	course := model.Course{CollegeID: college.ID, Name: "IT", Duration: 4}
	require.NoError(t, db.Create(&course).Error)
	e.resource = model.Resource{Title: "DS notes", Type: model.ResourceTypeLink, ExternalURL: "https://example.com",
		CollegeID: college.ID, CourseID: course.ID, UploaderID: e.student.ID, Status: model.ResourceStatusPending}
	require.NoError(t, db.Create(&e.resource).Error)

	hub := realtime.NewHub(zerolog.Nop())
	profiles := profile.NewService(db, nil, hub)
	h := NewAdminHandler(admin.NewStatsService(db), admin.NewAuditService(db), profiles,
		resources.NewService(resources.Deps{DB: db, Publisher: hub}), hub)

	actors := map[string]*model.Profile{"admin": &e.admin, "root": &e.super}
	e.app = fiber.New()
	g := e.app.Group("/admin", func(c *fiber.Ctx) error {
		p := actors[c.Get("X-User")]
		c.Locals("user_id", p.ID)
		c.Locals("user_role", p.Role)
		c.Locals("profile", p)
		return c.Next()
	})
	g.Get("/stats", h.GetStats)
	g.Get("/resources/pending", h.ListPending)
	g.Post("/resources/:id/moderate", h.ModerateResource)
	g.Get("/users", h.ListUsers)
	g.Post("/users/:id/ban", h.BanUser)
	g.Post("/users/:id/unban", h.UnbanUser)
	g.Put("/users/:id/role", h.SetRole)
	g.Get("/audit", h.ListAuditLogs)
	g.Get("/audit/:id", h.GetAuditLog)
	return e
}

type envelope struct {
	Data       json.RawMessage `json:"data"`
	Pagination struct {
		Total int64 `json:"total"`
	} `json:"pagination"`
}

func (e *env) call(t *testing.T, user, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	req.Header.Set("X-User", user)
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestStatsAndModeration(t *testing.T) {
	e := newEnv(t)

	status, out := e.call(t, "admin", fiber.MethodGet, "/admin/stats", "")
	require.Equal(t, fiber.StatusOK, status)
	var stats admin.Stats
	require.NoError(t, json.Unmarshal(out.Data, &stats))
	assert.Equal(t, int64(1), stats.PendingResources)
	assert.Equal(t, int64(3), stats.TotalProfiles)

	_, out = e.call(t, "admin", fiber.MethodGet, "/admin/resources/pending", "")
	var pending []resources.Item
	require.NoError(t, json.Unmarshal(out.Data, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "Asha", pending[0].UploaderName)

	path := fmt.Sprintf("/admin/resources/%d/moderate", e.resource.ID)
	status, _ = e.call(t, "admin", fiber.MethodPost, path, `{"action":"publish"}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, _ = e.call(t, "admin", fiber.MethodPost, path, `{"action":"approve","comments":"Nice"}`)
	require.Equal(t, fiber.StatusOK, status)
	status, _ = e.call(t, "admin", fiber.MethodPost, path, `{"action":"reject"}`)
	assert.Equal(t, fiber.StatusConflict, status)

	var r model.Resource
	require.NoError(t, e.db.First(&r, e.resource.ID).Error)
	assert.Equal(t, model.ResourceStatusApproved, r.Status)
}

func TestBanAndRoleChanges(t *testing.T) {
	e := newEnv(t)

	status, _ := e.call(t, "admin", fiber.MethodPost, fmt.Sprintf("/admin/users/%d/ban", e.student.ID), `{"reason":"spam"}`)
	require.Equal(t, fiber.StatusOK, status)

	status, out := e.call(t, "admin", fiber.MethodGet, "/admin/users?banned=true", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, int64(1), out.Pagination.Total)

	status, _ = e.call(t, "admin", fiber.MethodPost, fmt.Sprintf("/admin/users/%d/ban", e.admin.ID), "")
	assert.Equal(t, fiber.StatusBadRequest, status, "admins cannot ban themselves")

	status, _ = e.call(t, "admin", fiber.MethodPost, fmt.Sprintf("/admin/users/%d/unban", e.student.ID), "")
	require.Equal(t, fiber.StatusOK, status)

	rolePath := fmt.Sprintf("/admin/users/%d/role", e.student.ID)
	status, _ = e.call(t, "admin", fiber.MethodPut, rolePath, `{"role":"admin"}`)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = e.call(t, "root", fiber.MethodPut, rolePath, `{"role":"principal"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = e.call(t, "root", fiber.MethodPut, rolePath, `{"role":"admin"}`)
	require.Equal(t, fiber.StatusOK, status)

	status, out = e.call(t, "root", fiber.MethodGet, "/admin/audit?action=user_ban", "")
	require.Equal(t, fiber.StatusOK, status)
	var entries []admin.AuditEntry
	require.NoError(t, json.Unmarshal(out.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Admin", entries[0].AdminName)

	status, out = e.call(t, "root", fiber.MethodGet, fmt.Sprintf("/admin/audit?target=profiles&target_id=%d", e.student.ID), "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, int64(3), out.Pagination.Total)

	status, _ = e.call(t, "root", fiber.MethodGet, fmt.Sprintf("/admin/audit/%d", entries[0].ID), "")
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = e.call(t, "root", fiber.MethodGet, "/admin/audit/9999", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestStatsFilter(t *testing.T) {
	f := StatsFilter(5)
	assert.True(t, f(realtime.Message{Kind: realtime.KindStats, AdminOnly: true}))
	assert.True(t, f(realtime.Message{Kind: realtime.KindToast, AdminOnly: true, Toast: &realtime.Toast{}}))
	assert.False(t, f(realtime.Message{Kind: realtime.KindToast, UserID: 5, Toast: &realtime.Toast{}}))
	assert.True(t, f(realtime.Message{Kind: realtime.KindSessionTerminated, UserID: 5}))
	assert.False(t, f(realtime.Message{Kind: realtime.KindSessionTerminated, UserID: 6}))
	assert.False(t, f(realtime.Message{Kind: realtime.KindChange, Change: &realtime.ChangeEvent{Table: "resources"}}))
}
