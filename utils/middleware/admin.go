package middleware

import (
	"encoding/json"
	"strconv"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/services/admin"
	"github.com/campusflow/campus-flow-api/utils/logger"
	"github.com/gofiber/fiber/v2"
)

// AdminAuditLog records a successful admin write. It must run after
// RequireAdmin. Failed requests are not logged.
func AdminAuditLog(audit *admin.AuditService, action, target string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		adminID, ok := GetUserID(c)
		if !ok {
			return c.Next()
		}

		var targetID uint
		if id := c.Params("id"); id != "" {
			if parsed, err := strconv.ParseUint(id, 10, 32); err == nil {
				targetID = uint(parsed)
			}
		}

		var newValue []byte
		if body := c.Body(); len(body) > 0 && json.Valid(body) {
			newValue = append([]byte(nil), body...)
		}
		entry := model.AdminAuditLog{
			AdminID:     adminID,
			Action:      action,
			Target:      target,
			TargetID:    targetID,
			NewValue:    newValue,
			IPAddress:   c.IP(),
			UserAgent:   c.Get(fiber.HeaderUserAgent),
			Description: c.Method() + " " + c.Path(),
		}

		if err := c.Next(); err != nil {
			return err
		}
		if c.Response().StatusCode() >= fiber.StatusBadRequest {
			return nil
		}

		if entry.TargetID == 0 {
			entry.TargetID = createdID(c.Response().Body())
		}
		if err := audit.Record(c.UserContext(), &entry); err != nil {
			logger.Error().Err(err).Str("action", action).Msg("failed to write audit log")
		}
		return nil
	}
}

// createdID reads data.id from a Created envelope
func createdID(body []byte) uint {
	var envelope struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return 0
	}
	return envelope.Data.ID
}
