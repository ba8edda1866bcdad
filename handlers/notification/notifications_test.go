package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/services"
	"github.com/campusflow/campus-flow-api/utils/testdb"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationEndpoints(t *testing.T) {
	db := testdb.New(t)
	u := model.User{Email: "asha@example.com", Provider: model.ProviderPassword}
	require.NoError(t, db.Create(&u).Error)

	svc := services.NewNotificationService(db, nil)
	ctx := context.Background()
	first, err := svc.CreateNotification(ctx, services.CreateNotificationRequest{UserID: u.ID, Type: model.NotificationTypeSystem, Title: "Welcome"})
	require.NoError(t, err)
	second, err := svc.CreateNotification(ctx, services.CreateNotificationRequest{UserID: u.ID, Type: model.NotificationTypeResourceApproved, Title: "Approved"})
	require.NoError(t, err)

	h := NewNotificationHandler(svc)
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", u.ID)
		return c.Next()
	})
	app.Get("/notifications", h.GetNotifications)
	app.Get("/notifications/unread-count", h.GetUnreadCount)
	app.Post("/notifications/read-all", h.MarkAllAsRead)
	app.Post("/notifications/:id/read", h.MarkAsRead)
	app.Post("/notifications/:id/toggle", h.ToggleRead)
	app.Delete("/notifications/:id", h.DeleteNotification)

	call := func(method, path string) (int, json.RawMessage) {
		resp, err := app.Test(httptest.NewRequest(method, path, nil), -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		var out struct {
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out.Data
	}

	status, data := call(fiber.MethodGet, "/notifications?limit=1")
	require.Equal(t, fiber.StatusOK, status)
	var page []model.Notification
	require.NoError(t, json.Unmarshal(data, &page))
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID, "newest first")

	status, data = call(fiber.MethodPost, fmt.Sprintf("/notifications/%d/toggle", first.ID))
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, fmt.Sprintf(`{"id":%d,"read":true}`, first.ID), string(data))

	_, data = call(fiber.MethodGet, "/notifications/unread-count")
	assert.JSONEq(t, `{"unread_count":1}`, string(data))

	status, _ = call(fiber.MethodPost, "/notifications/9999/read")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, data = call(fiber.MethodPost, "/notifications/read-all")
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"count":1}`, string(data))

	status, _ = call(fiber.MethodDelete, fmt.Sprintf("/notifications/%d", second.ID))
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = call(fiber.MethodDelete, fmt.Sprintf("/notifications/%d", second.ID))
	assert.Equal(t, fiber.StatusNotFound, status)
}
