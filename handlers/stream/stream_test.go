package stream

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame(t *testing.T) {
	name, data, ok := Frame(realtime.Message{Kind: realtime.KindChange, Change: &realtime.ChangeEvent{Table: "resources", Type: realtime.EventInsert, RowID: 3}})
	require.True(t, ok)
	assert.Equal(t, "invalidate", name)
	assert.Equal(t, Invalidation{Table: "resources", Type: realtime.EventInsert, ID: 3}, data)

	name, _, ok = Frame(realtime.Message{Kind: realtime.KindToast, Toast: &realtime.Toast{Title: "hi"}})
	require.True(t, ok)
	assert.Equal(t, "toast", name)

	_, _, ok = Frame(realtime.Message{Kind: realtime.KindToast})
	assert.False(t, ok)
}

func TestParseTables(t *testing.T) {
	assert.Equal(t, DefaultTables, parseTables(""))
	assert.Equal(t, []string{"resources", "notifications"}, parseTables("resources, notifications,users"))
}

func TestRealtimeStreamsUntilSessionTerminated(t *testing.T) {
	hub := realtime.NewHub(zerolog.Nop())
	h := NewHandler(hub)

	app := fiber.New()
	app.Get("/realtime", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(7))
		c.Locals("profile", &model.Profile{ID: 7, Role: model.RoleStudent})
		return c.Next()
	}, h.Realtime)

	go func() {
		for hub.SubscriberCount() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		hub.PublishToast(8, realtime.Toast{Title: "for someone else"})
		hub.PublishToast(7, realtime.Toast{Level: realtime.ToastSuccess, Title: "Saved"})
		hub.PublishChange(realtime.ChangeEvent{Table: "notifications", Type: realtime.EventInsert, RowID: 1, UserID: 8})
		hub.PublishChange(realtime.ChangeEvent{Table: "resources", Type: realtime.EventUpdate, RowID: 2})
		hub.Publish(realtime.Message{Kind: realtime.KindSessionTerminated, UserID: 7})
	}()

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/realtime", nil), 5000)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "event: ready")
	assert.Contains(t, text, "event: toast\ndata: {\"level\":\"success\",\"title\":\"Saved\"}")
	assert.NotContains(t, text, "for someone else")
	assert.Contains(t, text, "event: invalidate\ndata: {\"table\":\"resources\",\"type\":\"UPDATE\",\"id\":2}")
	assert.NotContains(t, text, "notifications")
	assert.Contains(t, text, "event: session_terminated")

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
}
