package onboarding

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/services/onboarding"
	"github.com/campusflow/campus-flow-api/utils/cache"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct{}

func (stubCatalog) Colleges(ctx context.Context) ([]model.College, error) {
	return []model.College{{ID: 1, Name: "COEP"}, {ID: 2, Name: "VJTI"}}, nil
}

func (stubCatalog) Courses(ctx context.Context, collegeID uint) ([]model.Course, error) {
	return []model.Course{{ID: 10, CollegeID: collegeID, Name: "B.Tech"}, {ID: 11, CollegeID: collegeID, Name: "M.Tech"}}, nil
}

func (stubCatalog) Years(ctx context.Context, courseID uint) ([]model.Year, error) {
	return []model.Year{{ID: 100, CourseID: courseID, YearNumber: 1}, {ID: 101, CourseID: courseID, YearNumber: 2}}, nil
}

type stubProfiles struct {
	saved []onboarding.Selection
}

func (p *stubProfiles) SaveSelection(ctx context.Context, userID uint, sel onboarding.Selection) error {
	p.saved = append(p.saved, sel)
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func setup(t *testing.T) (*fiber.App, *stubProfiles) {
	t.Helper()
	profiles := &stubProfiles{}
	svc := onboarding.NewService(stubCatalog{}, profiles, onboarding.NewCacheStore(cache.NewMemoryCache()), nil, 0)
	h := NewOnboardingHandler(svc)

	app := fiber.New()
	g := app.Group("/onboarding", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(9))
		return c.Next()
	})
	g.Get("/", h.GetState)
	g.Post("/college", h.SelectCollege)
	g.Post("/course", h.SelectCourse)
	g.Post("/year", h.SelectYear)
	g.Post("/semester", h.SelectSemester)
	g.Post("/complete", h.Complete)
	g.Delete("/", h.Reset)
	return app, profiles
}

func call(t *testing.T, app *fiber.App, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestOnboardingHappyPath(t *testing.T) {
	app, profiles := setup(t)

	status, env := call(t, app, fiber.MethodGet, "/onboarding/", "")
	require.Equal(t, fiber.StatusOK, status)
	var state onboarding.State
	require.NoError(t, json.Unmarshal(env.Data, &state))
	assert.Len(t, state.Colleges, 2)

	status, _ = call(t, app, fiber.MethodPost, "/onboarding/college", `{"id":"1"}`)
	require.Equal(t, fiber.StatusOK, status)
	status, _ = call(t, app, fiber.MethodPost, "/onboarding/course", `{"id":10}`)
	require.Equal(t, fiber.StatusOK, status)
	status, env = call(t, app, fiber.MethodPost, "/onboarding/year", `{"id":101}`)
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &state))
	assert.Equal(t, []int{3, 4}, state.Semesters)

	status, _ = call(t, app, fiber.MethodPost, "/onboarding/semester", `{"semester":4}`)
	require.Equal(t, fiber.StatusOK, status)

	status, env = call(t, app, fiber.MethodPost, "/onboarding/complete", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"redirect":"/dashboard"}`, string(env.Data))
	require.Len(t, profiles.saved, 1)
	assert.Equal(t, onboarding.Selection{CollegeID: 1, CourseID: 10, YearID: 101, Semester: 4}, profiles.saved[0])
}

func TestOnboardingRejectsBadSelections(t *testing.T) {
	app, _ := setup(t)

	status, _ := call(t, app, fiber.MethodPost, "/onboarding/college", `{"id":0}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = call(t, app, fiber.MethodPost, "/onboarding/college", `{"id":99}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, env := call(t, app, fiber.MethodPost, "/onboarding/year", `{"id":100}`)
	assert.Equal(t, fiber.StatusConflict, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "ONBOARDING_INCOMPLETE", env.Error.Code)

	status, _ = call(t, app, fiber.MethodPost, "/onboarding/complete", "")
	assert.Equal(t, fiber.StatusConflict, status)
}

func TestOnboardingReset(t *testing.T) {
	app, _ := setup(t)

	status, _ := call(t, app, fiber.MethodPost, "/onboarding/college", `{"id":2}`)
	require.Equal(t, fiber.StatusOK, status)

	status, _ = call(t, app, fiber.MethodDelete, "/onboarding/", "")
	require.Equal(t, fiber.StatusOK, status)

	_, env := call(t, app, fiber.MethodGet, "/onboarding/", "")
	var state onboarding.State
	require.NoError(t, json.Unmarshal(env.Data, &state))
	assert.Nil(t, state.CollegeID)
}
