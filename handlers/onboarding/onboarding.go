package onboarding

import (
	"context"
	"errors"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/services/onboarding"
	"github.com/campusflow/campus-flow-api/utils/middleware"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// OnboardingHandler exposes the college, course, year and semester selection flow
type OnboardingHandler struct {
	service *onboarding.Service
}

func NewOnboardingHandler(service *onboarding.Service) *OnboardingHandler {
	return &OnboardingHandler{service: service}
}

// SelectRequest accepts "3", 3 or {"id":3}
type SelectRequest struct {
	ID model.FlexibleID `json:"id"`
}

type SemesterRequest struct {
	Semester int `json:"semester"`
}

func (h *OnboardingHandler) fail(c *fiber.Ctx, err error, state *onboarding.State) error {
	switch {
	case errors.Is(err, onboarding.ErrUnknownCollege),
		errors.Is(err, onboarding.ErrUnknownCourse),
		errors.Is(err, onboarding.ErrUnknownYear),
		errors.Is(err, onboarding.ErrInvalidSemester):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, onboarding.ErrOutOfOrder), errors.Is(err, onboarding.ErrIncomplete):
		return response.Error(c, fiber.StatusConflict, err.Error(), "ONBOARDING_INCOMPLETE")
	case errors.Is(err, context.DeadlineExceeded):
		return response.Error(c, fiber.StatusGatewayTimeout, "Loading the list timed out", "TIMEOUT")
	}
	if state != nil && state.Loaded {
		// the toast already went out on the realtime stream; return what is known
		return c.Status(fiber.StatusServiceUnavailable).JSON(response.Response{
			Success: false,
			Data:    state,
			Error:   &response.ErrorDetail{Code: "FETCH_FAILED", Message: err.Error()},
		})
	}
	return response.InternalServerError(c, "Onboarding failed")
}

func (h *OnboardingHandler) answer(c *fiber.Ctx, state onboarding.State, err error) error {
	if err != nil {
		return h.fail(c, err, &state)
	}
	return response.Success(c, state)
}

// GetState handles GET /api/v1/onboarding
func (h *OnboardingHandler) GetState(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	state, err := h.service.Get(c.UserContext(), userID)
	return h.answer(c, state, err)
}

func (h *OnboardingHandler) selectID(c *fiber.Ctx, op func(ctx context.Context, userID, id uint) (onboarding.State, error)) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	var req SelectRequest
	if err := c.BodyParser(&req); err != nil || req.ID == 0 {
		return response.BadRequest(c, "A valid id is required")
	}
	state, err := op(c.UserContext(), userID, uint(req.ID))
	return h.answer(c, state, err)
}

// SelectCollege handles POST /api/v1/onboarding/college
func (h *OnboardingHandler) SelectCollege(c *fiber.Ctx) error {
	return h.selectID(c, h.service.SelectCollege)
}

// SelectCourse handles POST /api/v1/onboarding/course
func (h *OnboardingHandler) SelectCourse(c *fiber.Ctx) error {
	return h.selectID(c, h.service.SelectCourse)
}

// SelectYear handles POST /api/v1/onboarding/year
func (h *OnboardingHandler) SelectYear(c *fiber.Ctx) error {
	return h.selectID(c, h.service.SelectYear)
}

// SelectSemester handles POST /api/v1/onboarding/semester
func (h *OnboardingHandler) SelectSemester(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	var req SemesterRequest
	if err := c.BodyParser(&req); err != nil || req.Semester <= 0 {
		return response.BadRequest(c, "A valid semester is required")
	}
	state, err := h.service.SelectSemester(c.UserContext(), userID, req.Semester)
	return h.answer(c, state, err)
}

// Complete handles POST /api/v1/onboarding/complete
func (h *OnboardingHandler) Complete(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	redirect, err := h.service.Complete(c.UserContext(), userID)
	if err != nil {
		return h.fail(c, err, nil)
	}
	return response.SuccessWithMessage(c, "Onboarding completed", fiber.Map{"redirect": redirect})
}

// Reset handles DELETE /api/v1/onboarding
func (h *OnboardingHandler) Reset(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	if err := h.service.Reset(c.UserContext(), userID); err != nil {
		return response.InternalServerError(c, "Failed to reset onboarding")
	}
	return response.SuccessWithMessage(c, "Onboarding reset", nil)
}
