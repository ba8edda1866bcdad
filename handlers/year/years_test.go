package year_test

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campusflow/campus-flow-api/handlers/college"
	"github.com/campusflow/campus-flow-api/handlers/course"
	"github.com/campusflow/campus-flow-api/handlers/year"
	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/services/catalog"
	"github.com/campusflow/campus-flow-api/utils/testdb"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRoutes(t *testing.T) {
	db := testdb.New(t)
	hub := realtime.NewHub(zerolog.Nop())
	sub := hub.Subscribe(realtime.ForTables("colleges", "courses", "years"), 16)
	defer sub.Close()

	cat := catalog.NewService(db)
	colleges := college.NewCollegeHandler(cat, hub)
	courses := course.NewCourseHandler(cat, hub)
	years := year.NewYearHandler(cat, hub)

	app := fiber.New()
	app.Get("/colleges", colleges.ListColleges)
	app.Post("/colleges", colleges.CreateCollege)
	app.Put("/colleges/:id", colleges.UpdateCollege)
	app.Delete("/colleges/:id", colleges.DeleteCollege)
	app.Get("/colleges/:college_id/courses", courses.ListCourses)
	app.Post("/colleges/:college_id/courses", courses.CreateCourse)
	app.Get("/courses/:course_id/years", years.ListYears)
	app.Post("/courses/:course_id/years", years.CreateYear)
	app.Delete("/years/:id", years.DeleteYear)

	call := func(method, path, body string) (int, json.RawMessage) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		var out struct {
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out.Data
	}

	status, data := call(fiber.MethodPost, "/colleges", `{"name":"COEP","location":"Pune"}`)
	require.Equal(t, fiber.StatusCreated, status)
	var c model.College
	require.NoError(t, json.Unmarshal(data, &c))

	select {
	case msg := <-sub.C:
		assert.Equal(t, "colleges", msg.Change.Table)
		assert.Equal(t, realtime.EventInsert, msg.Change.Type)
	case <-time.After(time.Second):
		t.Fatal("no change event for the new college")
	}

	status, _ = call(fiber.MethodPost, "/colleges", `{"name":"COEP"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	status, _ = call(fiber.MethodPost, "/colleges", `{"name":""}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, data = call(fiber.MethodPost, fmt.Sprintf("/colleges/%d/courses", c.ID), `{"name":"Computer Engineering","duration":3}`)
	require.Equal(t, fiber.StatusCreated, status)
	var co model.Course
	require.NoError(t, json.Unmarshal(data, &co))

	status, _ = call(fiber.MethodPost, "/colleges/999/courses", `{"name":"Ghost"}`)
	assert.Equal(t, fiber.StatusNotFound, status)

	_, data = call(fiber.MethodGet, fmt.Sprintf("/courses/%d/years", co.ID), "")
	var ys []year.YearResponse
	require.NoError(t, json.Unmarshal(data, &ys))
	require.Len(t, ys, 3, "years generated from the duration")
	assert.Equal(t, []int{5, 6}, ys[2].SemesterNumbers)

	status, _ = call(fiber.MethodPost, fmt.Sprintf("/courses/%d/years", co.ID), `{"year_number":2}`)
	assert.Equal(t, fiber.StatusConflict, status)
	status, data = call(fiber.MethodPost, fmt.Sprintf("/courses/%d/years", co.ID), `{"year_number":4,"total_semesters":3}`)
	require.Equal(t, fiber.StatusCreated, status)
	var y model.Year
	require.NoError(t, json.Unmarshal(data, &y))
	assert.Equal(t, []string{"Semester 10", "Semester 11", "Semester 12"}, []string(y.Semesters))

	status, _ = call(fiber.MethodDelete, fmt.Sprintf("/years/%d", y.ID), "")
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = call(fiber.MethodDelete, fmt.Sprintf("/years/%d", y.ID), "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, data = call(fiber.MethodPut, fmt.Sprintf("/colleges/%d", c.ID), `{"location":"Shivajinagar"}`)
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(data, &c))
	assert.Equal(t, "COEP", c.Name)
	assert.Equal(t, "Shivajinagar", c.Location)

	status, _ = call(fiber.MethodDelete, fmt.Sprintf("/colleges/%d", c.ID), "")
	assert.Equal(t, fiber.StatusOK, status)
	_, data = call(fiber.MethodGet, "/colleges", "")
	assert.JSONEq(t, `[]`, string(data))
}
