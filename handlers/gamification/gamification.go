package gamification

import (
	"errors"
	"strconv"

	"github.com/campusflow/campus-flow-api/services/gamification"
	"github.com/campusflow/campus-flow-api/utils/middleware"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// GamificationHandler serves missions, the leaderboard and badges
type GamificationHandler struct {
	service *gamification.Service
}

func NewGamificationHandler(service *gamification.Service) *GamificationHandler {
	return &GamificationHandler{service: service}
}

// GetMissions handles GET /api/v1/missions. Today's assignments are created
// on first access.
func (h *GamificationHandler) GetMissions(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	assignments, err := h.service.EnsureAssignments(c.UserContext(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load missions")
	}
	return response.Success(c, assignments)
}

// ClaimMission handles POST /api/v1/missions/:id/claim
func (h *GamificationHandler) ClaimMission(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return response.BadRequest(c, "Invalid mission ID")
	}

	result, err := h.service.Claim(c.UserContext(), userID, uint(id))
	if err != nil {
		switch {
		case errors.Is(err, gamification.ErrAssignmentNotFound):
			return response.NotFound(c, "Mission not found")
		case errors.Is(err, gamification.ErrAlreadyClaimed):
			return response.Conflict(c, err.Error())
		case errors.Is(err, gamification.ErrMissionNotClaimable):
			return response.BadRequest(c, err.Error())
		}
		return response.InternalServerError(c, "Failed to claim mission")
	}
	return response.SuccessWithMessage(c, "Reward claimed", result)
}

// GetLeaderboard handles GET /api/v1/leaderboard
func (h *GamificationHandler) GetLeaderboard(c *fiber.Ctx) error {
	entries, err := h.service.Leaderboard(c.UserContext(), c.QueryInt("limit", 10))
	if err != nil {
		return response.InternalServerError(c, "Failed to load leaderboard")
	}
	return response.Success(c, entries)
}

// ListBadges handles GET /api/v1/badges
func (h *GamificationHandler) ListBadges(c *fiber.Ctx) error {
	badges, err := h.service.ListBadges(c.UserContext())
	if err != nil {
		return response.InternalServerError(c, "Failed to load badges")
	}
	return response.Success(c, badges)
}

// MyBadges handles GET /api/v1/badges/mine
func (h *GamificationHandler) MyBadges(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	badges, err := h.service.UserBadges(c.UserContext(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load badges")
	}
	return response.Success(c, badges)
}
