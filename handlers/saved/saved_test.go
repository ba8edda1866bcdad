package saved

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/services/library"
	"github.com/campusflow/campus-flow-api/services/resources"
	"github.com/campusflow/campus-flow-api/utils/testdb"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleAndList(t *testing.T) {
	db := testdb.New(t)
	u := model.User{Email: "asha@example.com", Provider: model.ProviderPassword}
	require.NoError(t, db.Create(&u).Error)
	p := model.Profile{ID: u.ID, FullName: "Asha", Role: model.RoleStudent}
	require.NoError(t, db.Create(&p).Error)
	college := model.College{Name: "COEP"}
	require.NoError(t, db.Create(&college).Error)
	course := model.Course{CollegeID: college.ID, Name: "IT", Duration: 4}
	require.NoError(t, db.Create(&course).Error)

	approved := model.Resource{Title: "OS notes", Type: model.ResourceTypeLink, ExternalURL: "https://example.com",
		CollegeID: college.ID, CourseID: course.ID, UploaderID: u.ID, Status: model.ResourceStatusApproved}
	require.NoError(t, db.Create(&approved).Error)

	lib := library.NewService(db, nil, nil)
	h := NewSavedHandler(lib, resources.NewService(resources.Deps{DB: db}))
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", p.ID)
		c.Locals("profile", &p)
		return c.Next()
	})
	app.Get("/saved", h.ListSaved)
	app.Post("/saved/:resource_id/toggle", h.ToggleSaved)

	toggle := func(id uint) (int, map[string]interface{}) {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, fmt.Sprintf("/saved/%d/toggle", id), nil), -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		var out struct {
			Data map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out.Data
	}

	status, data := toggle(approved.ID)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, data["saved"])
	assert.True(t, lib.Set(p.ID).IsSaved(approved.ID))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/saved", nil), -1)
	require.NoError(t, err)
	var list struct {
		Data []model.SavedResource `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list.Data, 1)
	require.NotNil(t, list.Data[0].Resource)
	assert.Equal(t, "OS notes", list.Data[0].Resource.Title)

	status, data = toggle(approved.ID)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, data["saved"])

	status, _ = toggle(9999)
	assert.Equal(t, fiber.StatusNotFound, status)

	saved, err := lib.List(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, saved)
}
