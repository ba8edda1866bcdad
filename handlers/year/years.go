package year

import (
	"errors"
	"strconv"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/services/catalog"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/campusflow/campus-flow-api/utils/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
)

type YearHandler struct {
	catalog   *catalog.Service
	publisher realtime.Publisher
	validator *validation.Validator
}

func NewYearHandler(cat *catalog.Service, publisher realtime.Publisher) *YearHandler {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &YearHandler{
		catalog:   cat,
		publisher: publisher,
		validator: validation.NewValidator(),
	}
}

// CreateYearRequest creates one year. Semester labels default to two per year.
type CreateYearRequest struct {
	YearNumber     int      `json:"year_number" validate:"required,min=1,max=10"`
	TotalSemesters *int     `json:"total_semesters" validate:"omitempty,min=1,max=4"`
	Semesters      []string `json:"semesters" validate:"omitempty,dive,min=1,max=50"`
}

// YearResponse adds the semester numbers a student can pick
type YearResponse struct {
	model.Year
	SemesterNumbers []int `json:"semester_numbers"`
}

func yearError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, catalog.ErrDuplicate):
		return response.Conflict(c, err.Error())
	}
	return response.InternalServerError(c, "Year operation failed")
}

// ListYears handles GET /api/v1/courses/:course_id/years
func (h *YearHandler) ListYears(c *fiber.Ctx) error {
	courseID, err := strconv.ParseUint(c.Params("course_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}
	years, err := h.catalog.Years(c.UserContext(), uint(courseID))
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch years")
	}
	out := make([]YearResponse, len(years))
	for i, y := range years {
		out[i] = YearResponse{Year: y, SemesterNumbers: catalog.SemesterNumbers(y.YearNumber, y.TotalSemesters)}
	}
	return response.Success(c, out)
}

// CreateYear handles POST /api/v1/admin/courses/:course_id/years
func (h *YearHandler) CreateYear(c *fiber.Ctx) error {
	courseID, err := strconv.ParseUint(c.Params("course_id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}
	var req CreateYearRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	year := model.Year{
		CourseID:       uint(courseID),
		YearNumber:     req.YearNumber,
		TotalSemesters: req.TotalSemesters,
		Semesters:      datatypes.JSONSlice[string](req.Semesters),
	}
	if err := h.catalog.CreateYear(c.UserContext(), &year); err != nil {
		return yearError(c, err)
	}
	h.publisher.PublishChange(realtime.ChangeEvent{Table: "years", Type: realtime.EventInsert, RowID: year.ID})
	return response.Created(c, year)
}

// DeleteYear handles DELETE /api/v1/admin/years/:id
func (h *YearHandler) DeleteYear(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid year ID")
	}
	if err := h.catalog.DeleteYear(c.UserContext(), uint(id)); err != nil {
		return yearError(c, err)
	}
	h.publisher.PublishChange(realtime.ChangeEvent{Table: "years", Type: realtime.EventDelete, RowID: uint(id)})
	return response.SuccessWithMessage(c, "Year deleted successfully", nil)
}
