package course

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

// CourseHandler handles course-related requests
type CourseHandler struct {
	catalog   *catalog.Service
	publisher realtime.Publisher
	validator *validation.Validator
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(cat *catalog.Service, publisher realtime.Publisher) *CourseHandler {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &CourseHandler{
		catalog:   cat,
		publisher: publisher,
		validator: validation.NewValidator(),
	}
}

// CreateCourseRequest represents the request body for creating a course
type CreateCourseRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Code     string `json:"code" validate:"omitempty,min=2,max=30"`
	Duration int    `json:"duration" validate:"omitempty,min=1,max=10"`
	Seats    int    `json:"seats" validate:"omitempty,min=0"`
}

// UpdateCourseRequest represents the request body for updating a course
type UpdateCourseRequest struct {
	Name     string `json:"name" validate:"omitempty,min=2,max=255"`
	Code     string `json:"code" validate:"omitempty,min=2,max=30"`
	Duration int    `json:"duration" validate:"omitempty,min=1,max=10"`
	Seats    int    `json:"seats" validate:"omitempty,min=0"`
}

func courseError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, catalog.ErrDuplicate):
		return response.Conflict(c, err.Error())
	}
	return response.InternalServerError(c, "Course operation failed")
}

func (h *CourseHandler) changed(id uint, t realtime.EventType) {
	h.publisher.PublishChange(realtime.ChangeEvent{Table: "courses", Type: t, RowID: id})
}

// ListCourses handles GET /api/v1/colleges/:college_id/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	collegeID, err := strconv.ParseUint(c.Params("college_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid college ID")
	}
	courses, err := h.catalog.Courses(c.UserContext(), uint(collegeID))
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch courses")
	}
	return response.Success(c, courses)
}

// GetCourse handles GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}
	course, err := h.catalog.Course(c.UserContext(), uint(id))
	if err != nil {
		return courseError(c, err)
	}
	return response.Success(c, course)
}

// CreateCourse handles POST /api/v1/admin/colleges/:college_id/courses. The course's
// years are generated from its duration.
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	collegeID, err := strconv.ParseUint(c.Params("college_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid college ID")
	}
	var req CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	course := model.Course{
		CollegeID: uint(collegeID),
		Name:      validation.SanitizeString(req.Name),
		Code:      validation.SanitizeString(req.Code),
		Duration:  req.Duration,
		Seats:     req.Seats,
	}
	if err := h.catalog.CreateCourse(c.UserContext(), &course); err != nil {
		return courseError(c, err)
	}
	h.changed(course.ID, realtime.EventInsert)
	return response.Created(c, course)
}

// UpdateCourse handles PUT /api/v1/admin/courses/:id
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}
	var req UpdateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	course, err := h.catalog.UpdateCourse(c.UserContext(), uint(id), model.Course{
		Name:     validation.SanitizeString(req.Name),
		Code:     validation.SanitizeString(req.Code),
		Duration: req.Duration,
		Seats:    req.Seats,
	})
	if err != nil {
		return courseError(c, err)
	}
	h.changed(course.ID, realtime.EventUpdate)
	return response.Success(c, course)
}

// DeleteCourse handles DELETE /api/v1/admin/courses/:id
func (h *CourseHandler) DeleteCourse(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}
	if err := h.catalog.DeleteCourse(c.UserContext(), uint(id)); err != nil {
		return courseError(c, err)
	}
	h.changed(uint(id), realtime.EventDelete)
	return response.SuccessWithMessage(c, "Course deleted successfully", nil)
}
