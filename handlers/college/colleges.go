package college

import (
	"errors"
	"strconv"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/services/catalog"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/campusflow/campus-flow-api/utils/validation"
	"github.com/gofiber/fiber/v2"
)

// CollegeHandler handles college-related requests
type CollegeHandler struct {
	catalog   *catalog.Service
	publisher realtime.Publisher
	validator *validation.Validator
}

// NewCollegeHandler creates a new college handler
func NewCollegeHandler(cat *catalog.Service, publisher realtime.Publisher) *CollegeHandler {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &CollegeHandler{
		catalog:   cat,
		publisher: publisher,
		validator: validation.NewValidator(),
	}
}

// CreateCollegeRequest represents the request body for creating a college
type CreateCollegeRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Location    string `json:"location" validate:"omitempty,max=255"`
	Established int    `json:"established" validate:"omitempty,min=1800,max=2100"`
}

// UpdateCollegeRequest represents the request body for updating a college
type UpdateCollegeRequest struct {
	Name        string `json:"name" validate:"omitempty,min=2,max=255"`
	Location    string `json:"location" validate:"omitempty,max=255"`
	Established int    `json:"established" validate:"omitempty,min=1800,max=2100"`
}

func collegeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return response.NotFound(c, "College not found")
	case errors.Is(err, catalog.ErrDuplicate):
		return response.Conflict(c, "A college with this name already exists")
	}
	return response.InternalServerError(c, "College operation failed")
}

func (h *CollegeHandler) changed(id uint, t realtime.EventType) {
	h.publisher.PublishChange(realtime.ChangeEvent{Table: "colleges", Type: t, RowID: id})
}

// ListColleges handles GET /api/v1/colleges
func (h *CollegeHandler) ListColleges(c *fiber.Ctx) error {
	var colleges []model.College
	var err error
	if search := c.Query("search"); search != "" {
		colleges, err = h.catalog.SearchColleges(c.UserContext(), search)
	} else {
		colleges, err = h.catalog.Colleges(c.UserContext())
	}
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch colleges")
	}
	return response.Success(c, colleges)
}

// GetCollege handles GET /api/v1/colleges/:id
func (h *CollegeHandler) GetCollege(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid college ID")
	}
	college, err := h.catalog.College(c.UserContext(), uint(id))
	if err != nil {
		return collegeError(c, err)
	}
	return response.Success(c, college)
}

// CreateCollege handles POST /api/v1/admin/colleges
func (h *CollegeHandler) CreateCollege(c *fiber.Ctx) error {
	var req CreateCollegeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	college := model.College{
		Name:        validation.SanitizeString(req.Name),
		Location:    validation.SanitizeString(req.Location),
		Established: req.Established,
	}
	if err := h.catalog.CreateCollege(c.UserContext(), &college); err != nil {
		return collegeError(c, err)
	}
	h.changed(college.ID, realtime.EventInsert)
	return response.Created(c, college)
}

// UpdateCollege handles PUT /api/v1/admin/colleges/:id
func (h *CollegeHandler) UpdateCollege(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid college ID")
	}
	var req UpdateCollegeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	college, err := h.catalog.UpdateCollege(c.UserContext(), uint(id), model.College{
		Name:        validation.SanitizeString(req.Name),
		Location:    validation.SanitizeString(req.Location),
		Established: req.Established,
	})
	if err != nil {
		return collegeError(c, err)
	}
	h.changed(college.ID, realtime.EventUpdate)
	return response.Success(c, college)
}

// DeleteCollege handles DELETE /api/v1/admin/colleges/:id
func (h *CollegeHandler) DeleteCollege(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid college ID")
	}
	if err := h.catalog.DeleteCollege(c.UserContext(), uint(id)); err != nil {
		return collegeError(c, err)
	}
	h.changed(uint(id), realtime.EventDelete)
	return response.SuccessWithMessage(c, "College deleted successfully", nil)
}
