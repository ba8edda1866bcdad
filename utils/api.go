package utils

import (
	fiber "github.com/gofiber/fiber/v2"

	"github.com/campusflow/campus-flow-api/database"
	"github.com/campusflow/campus-flow-api/utils/logger"
	"github.com/campusflow/campus-flow-api/utils/response"
)

// MakeHTTPHandleFunc binds a store-aware handler to a fiber route. Errors the
// handler did not answer itself become a 500 envelope.
func MakeHTTPHandleFunc(handler func(c *fiber.Ctx, store database.Storage) error, store database.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := handler(c, store); err != nil {
			logger.Error().Err(err).Str("path", c.Path()).Msg("handler failed")
			return response.InternalServerError(c, err.Error())
		}
		return nil
	}
}
