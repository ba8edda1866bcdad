package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/services/library"
	"github.com/campusflow/campus-flow-api/services/resources"
	"github.com/campusflow/campus-flow-api/utils/cache"
	"github.com/campusflow/campus-flow-api/utils/testdb"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memStore struct{ objects map[string][]byte }

func (m *memStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memStore) URL(key string) string { return "https://cdn.test/" + key }

type env struct {
	db      *gorm.DB
	svc     *resources.Service
	app     *fiber.App
	student model.Profile
	other   model.Profile
	admin   model.Profile
	college model.College
	course  model.Course
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
	e.other = seedProfile(t, db, "ravi@example.com", "Ravi", model.RoleStudent)
	e.admin = seedProfile(t, db, "admin@example.com", "Admin", model.RoleAdmin)
	e.college = model.College{Name: "COEP"}
	require.NoError(t, db.Create(&e.college).Error)
	e.course = model.Course{CollegeID: e.college.ID, Name: "Computer Engineering", Duration: 4}
	require.NoError(t, db.Create(&e.course).Error)

	e.svc = resources.NewService(resources.Deps{DB: db, Cache: cache.NewMemoryCache(), Store: &memStore{}})
	h := NewResourceHandler(e.svc, library.NewService(db, nil, nil))

	profiles := map[string]*model.Profile{"asha": &e.student, "ravi": &e.other, "admin": &e.admin}
	e.app = fiber.New()
	g := e.app.Group("/resources", func(c *fiber.Ctx) error {
		p := profiles[c.Get("X-User")]
		c.Locals("user_id", p.ID)
		c.Locals("profile", p)
		return c.Next()
	})
	g.Get("/", h.ListResources)
	g.Get("/mine", h.ListMine)
	g.Get("/:id", h.GetResource)
	g.Post("/", h.CreateResource)
	g.Put("/:id", h.UpdateResource)
	g.Delete("/:id", h.DeleteResource)
	g.Post("/:id/download", h.DownloadResource)
	g.Post("/:id/rating", h.RateResource)
	return e
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func (e *env) do(t *testing.T, user, method, path, contentType string, body []byte) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-User", user)
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (e *env) jsonCall(t *testing.T, user, method, path, body string) (int, envelope) {
	return e.do(t, user, method, path, fiber.MIMEApplicationJSON, []byte(body))
}

func (e *env) createLink(t *testing.T, title string) model.Resource {
	t.Helper()
	body := fmt.Sprintf(`{"title":%q,"type":"link","subject":"DBMS","college_id":"%d","course_id":{"id":%d},"external_url":"https://example.com/x"}`,
		title, e.college.ID, e.course.ID)
	status, out := e.jsonCall(t, "asha", fiber.MethodPost, "/resources/", body)
	require.Equal(t, fiber.StatusCreated, status)
	var r model.Resource
	require.NoError(t, json.Unmarshal(out.Data, &r))
	return r
}

func TestCreateListAndModerate(t *testing.T) {
	e := newEnv(t)
	r := e.createLink(t, "Normalization notes")
	assert.Equal(t, model.ResourceStatusPending, r.Status)

	_, out := e.jsonCall(t, "ravi", fiber.MethodGet, "/resources/", "")
	assert.JSONEq(t, `[]`, string(out.Data))

	_, out = e.jsonCall(t, "asha", fiber.MethodGet, "/resources/mine", "")
	var mine []ListItem
	require.NoError(t, json.Unmarshal(out.Data, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, "Asha", mine[0].UploaderName)

	status, _ := e.jsonCall(t, "ravi", fiber.MethodGet, fmt.Sprintf("/resources/?uploader_id=%d", e.student.ID), "")
	assert.Equal(t, fiber.StatusForbidden, status)

	_, err := e.svc.Moderate(context.Background(), r.ID, e.admin.ID, resources.ModerateInput{Approve: true})
	require.NoError(t, err)

	_, out = e.jsonCall(t, "ravi", fiber.MethodGet, fmt.Sprintf("/resources/?college_id=%d&search=normal", e.college.ID), "")
	var list []ListItem
	require.NoError(t, json.Unmarshal(out.Data, &list))
	require.Len(t, list, 1)
	assert.False(t, list[0].Saved)
}

func TestListRejectsConflictingYearFilters(t *testing.T) {
	e := newEnv(t)
	status, _ := e.jsonCall(t, "asha", fiber.MethodGet, "/resources/?year_id=3&year_number=2", "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = e.jsonCall(t, "asha", fiber.MethodGet, "/resources/?sort=oldest", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestMultipartUpload(t *testing.T) {
	e := newEnv(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("title", "Slides week 1"))
	require.NoError(t, w.WriteField("type", "presentation"))
	require.NoError(t, w.WriteField("college_id", fmt.Sprint(e.college.ID)))
	require.NoError(t, w.WriteField("course_id", fmt.Sprint(e.course.ID)))
	part, err := w.CreateFormFile("file", "week1.pptx")
	require.NoError(t, err)
	_, err = part.Write([]byte("slides"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	status, out := e.do(t, "asha", fiber.MethodPost, "/resources/", w.FormDataContentType(), buf.Bytes())
	require.Equal(t, fiber.StatusCreated, status)
	var r model.Resource
	require.NoError(t, json.Unmarshal(out.Data, &r))
	assert.True(t, strings.HasPrefix(r.FileURL, "https://cdn.test/"))
	assert.Equal(t, int64(6), r.FileSize)

	status, _ = e.jsonCall(t, "asha", fiber.MethodPost, "/resources/",
		fmt.Sprintf(`{"title":"No file","type":"notes","college_id":%d,"course_id":%d}`, e.college.ID, e.course.ID))
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestUpdateDeleteDownloadAndRate(t *testing.T) {
	e := newEnv(t)
	r := e.createLink(t, "ER diagrams")
	path := fmt.Sprintf("/resources/%d", r.ID)

	status, _ := e.jsonCall(t, "ravi", fiber.MethodPut, path, `{"title":"Hijacked"}`)
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = e.jsonCall(t, "asha", fiber.MethodPut, path, `{"title":"ER diagrams v2"}`)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = e.jsonCall(t, "ravi", fiber.MethodGet, path, "")
	assert.Equal(t, fiber.StatusNotFound, status, "pending rows are hidden from other students")

	_, err := e.svc.Moderate(context.Background(), r.ID, e.admin.ID, resources.ModerateInput{Approve: true})
	require.NoError(t, err)

	status, out := e.jsonCall(t, "ravi", fiber.MethodPost, path+"/download", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"url":"https://example.com/x"}`, string(out.Data))

	status, _ = e.jsonCall(t, "ravi", fiber.MethodPost, path+"/rating", `{"stars":7}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	status, out = e.jsonCall(t, "ravi", fiber.MethodPost, path+"/rating", `{"stars":4}`)
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"rating":4,"rating_count":1}`, string(out.Data))

	status, _ = e.jsonCall(t, "ravi", fiber.MethodDelete, path, "")
	assert.Equal(t, fiber.StatusForbidden, status)
	status, _ = e.jsonCall(t, "admin", fiber.MethodDelete, path, "")
	assert.Equal(t, fiber.StatusOK, status)

	var count int64
	require.NoError(t, e.db.Model(&model.Resource{}).Where("id = ?", r.ID).Count(&count).Error)
	assert.Zero(t, count)
}
