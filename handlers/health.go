package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campusflow/campus-flow-api/database"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/utils/response"
)

// HandleCheckHealth reports whether the database answers a ping
func HandleCheckHealth(c *fiber.Ctx, store database.Storage) error {
	if err := store.HealthCheck(); err != nil {
		return response.ServiceUnavailable(c, "Database is not reachable")
	}
	return response.Success(c, fiber.Map{"status": "ok"})
}

// RealtimeHealth adds the hub counters to the database check
func RealtimeHealth(hub *realtime.Hub) func(c *fiber.Ctx, store database.Storage) error {
	return func(c *fiber.Ctx, store database.Storage) error {
		if err := store.HealthCheck(); err != nil {
			return response.ServiceUnavailable(c, "Database is not reachable")
		}
		return response.Success(c, fiber.Map{
			"status":               "ok",
			"realtime_subscribers": hub.SubscriberCount(),
			"realtime_dropped":     hub.Dropped(),
		})
	}
}
