package resource

import (
	"errors"
	"io"
	"strconv"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/services/library"
	"github.com/campusflow/campus-flow-api/services/resources"
	"github.com/campusflow/campus-flow-api/utils/middleware"
	"github.com/campusflow/campus-flow-api/utils/response"
	"github.com/campusflow/campus-flow-api/utils/validation"
	"github.com/gofiber/fiber/v2"
)

// ResourceHandler handles the resource lifecycle endpoints
type ResourceHandler struct {
	service   *resources.Service
	library   *library.Service
	validator *validation.Validator
}

// NewResourceHandler creates a resource handler. library may be nil, in which
// case list items carry saved=false.
func NewResourceHandler(service *resources.Service, lib *library.Service) *ResourceHandler {
	return &ResourceHandler{
		service:   service,
		library:   lib,
		validator: validation.NewValidator(),
	}
}

// ListItem is a resource as shown to the caller
type ListItem struct {
	resources.Item
	Saved bool `json:"saved"`
}

// CreateResourceRequest is the JSON body for link resources. File uploads use
// multipart form fields of the same names plus "file".
type CreateResourceRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Type        model.ResourceType `json:"type"`
	Subject     string             `json:"subject"`
	CollegeID   model.FlexibleID   `json:"college_id"`
	CourseID    model.FlexibleID   `json:"course_id"`
	YearID      model.FlexibleID   `json:"year_id"`
	ExternalURL string             `json:"external_url"`
}

type RateRequest struct {
	Stars int `json:"stars" validate:"required,min=1,max=5"`
}

// ParseFilter reads a resource filter from the query string
func ParseFilter(c *fiber.Ctx) (resources.Filter, error) {
	var f resources.Filter
	var err error
	if f.CollegeID, err = model.ParseFlexibleID(c.Query("college_id")); err != nil {
		return f, err
	}
	if f.CourseID, err = model.ParseFlexibleID(c.Query("course_id")); err != nil {
		return f, err
	}
	if f.YearID, err = model.ParseFlexibleID(c.Query("year_id")); err != nil {
		return f, err
	}
	if f.UploaderID, err = model.ParseFlexibleID(c.Query("uploader_id")); err != nil {
		return f, err
	}
	if raw := c.Query("year_number"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, errors.New("year_number must be a number")
		}
		f.YearNumber = &n
	}
	f.Type = model.ResourceType(c.Query("type"))
	f.Subject = c.Query("subject")
	f.SearchTerm = c.Query("search")
	f.Sort = resources.Sort(c.Query("sort"))
	return f, f.Validate()
}

func (h *ResourceHandler) withSaved(c *fiber.Ctx, items []resources.Item) []ListItem {
	out := make([]ListItem, len(items))
	var set *library.SavedSet
	if userID, ok := middleware.GetUserID(c); ok && h.library != nil {
		set = h.library.Set(userID)
		if err := set.Load(c.UserContext()); err != nil {
			set = nil
		}
	}
	for i, item := range items {
		out[i] = ListItem{Item: item}
		if set != nil {
			out[i].Saved = set.IsSaved(item.ID)
		}
	}
	return out
}

func resourceError(c *fiber.Ctx, err error) error {
	switch {
	case validation.IsValidationError(err):
		return response.ValidationError(c, err)
	case errors.Is(err, resources.ErrNotFound):
		return response.NotFound(c, "Resource not found")
	case errors.Is(err, resources.ErrForbidden):
		return response.Forbidden(c, err.Error())
	case errors.Is(err, resources.ErrNotEditable), errors.Is(err, resources.ErrNotPending):
		return response.Conflict(c, err.Error())
	case errors.Is(err, resources.ErrInvalidRating),
		errors.Is(err, resources.ErrInvalidUpload),
		errors.Is(err, resources.ErrConflictingYearFilter),
		errors.Is(err, resources.ErrInvalidSort),
		errors.Is(err, resources.ErrInvalidType):
		return response.BadRequest(c, err.Error())
	}
	return response.InternalServerError(c, "Resource operation failed")
}

func resourceID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// ListResources handles GET /api/v1/resources
func (h *ResourceHandler) ListResources(c *fiber.Ctx) error {
	f, err := ParseFilter(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}
	// an uploader filter includes pending and rejected rows
	if userID, _ := middleware.GetUserID(c); f.UploaderID != 0 && uint(f.UploaderID) != userID && !middleware.IsAdmin(c) {
		return response.Forbidden(c, "uploader_id is limited to your own uploads")
	}
	items, err := h.service.List(c.UserContext(), f)
	if err != nil {
		return resourceError(c, err)
	}
	return response.Success(c, h.withSaved(c, items))
}

// ListMine handles GET /api/v1/resources/mine
func (h *ResourceHandler) ListMine(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	items, err := h.service.Mine(c.UserContext(), userID, resources.Sort(c.Query("sort")))
	if err != nil {
		return resourceError(c, err)
	}
	return response.Success(c, h.withSaved(c, items))
}

// GetResource handles GET /api/v1/resources/:id
func (h *ResourceHandler) GetResource(c *fiber.Ctx) error {
	id, ok := resourceID(c)
	if !ok {
		return response.BadRequest(c, "Invalid resource ID")
	}
	userID, _ := middleware.GetUserID(c)
	item, err := h.service.Get(c.UserContext(), id, userID, middleware.IsAdmin(c))
	if err != nil {
		return resourceError(c, err)
	}
	return response.Success(c, h.withSaved(c, []resources.Item{*item})[0])
}

// CreateResource handles POST /api/v1/resources, as JSON for links or
// multipart for files
func (h *ResourceHandler) CreateResource(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req CreateResourceRequest
	var file *resources.FileInput
	if form, err := c.MultipartForm(); err == nil {
		req.Title = c.FormValue("title")
		req.Description = c.FormValue("description")
		req.Type = model.ResourceType(c.FormValue("type"))
		req.Subject = c.FormValue("subject")
		req.ExternalURL = c.FormValue("external_url")
		if req.CollegeID, err = model.ParseFlexibleID(c.FormValue("college_id")); err != nil {
			return response.BadRequest(c, "Invalid college_id")
		}
		if req.CourseID, err = model.ParseFlexibleID(c.FormValue("course_id")); err != nil {
			return response.BadRequest(c, "Invalid course_id")
		}
		if req.YearID, err = model.ParseFlexibleID(c.FormValue("year_id")); err != nil {
			return response.BadRequest(c, "Invalid year_id")
		}
		if headers := form.File["file"]; len(headers) > 0 {
			fh := headers[0]
			f, err := fh.Open()
			if err != nil {
				return response.BadRequest(c, "Failed to read uploaded file")
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return response.BadRequest(c, "Failed to read uploaded file")
			}
			file = &resources.FileInput{Name: fh.Filename, Content: content}
		}
	} else if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	r, err := h.service.Upload(c.UserContext(), resources.UploadInput{
		UploaderID:  userID,
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Subject:     req.Subject,
		CollegeID:   uint(req.CollegeID),
		CourseID:    uint(req.CourseID),
		YearID:      req.YearID.Ptr(),
		ExternalURL: req.ExternalURL,
		File:        file,
	})
	if err != nil {
		return resourceError(c, err)
	}
	return response.Created(c, r)
}

// UpdateResource handles PUT /api/v1/resources/:id
func (h *ResourceHandler) UpdateResource(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	id, ok := resourceID(c)
	if !ok {
		return response.BadRequest(c, "Invalid resource ID")
	}
	var req resources.UpdateInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	r, err := h.service.Update(c.UserContext(), id, userID, req)
	if err != nil {
		return resourceError(c, err)
	}
	return response.Success(c, r)
}

// DeleteResource handles DELETE /api/v1/resources/:id
func (h *ResourceHandler) DeleteResource(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	id, ok := resourceID(c)
	if !ok {
		return response.BadRequest(c, "Invalid resource ID")
	}
	if err := h.service.Delete(c.UserContext(), id, userID, middleware.IsAdmin(c)); err != nil {
		return resourceError(c, err)
	}
	return response.SuccessWithMessage(c, "Resource deleted", nil)
}

// DownloadResource handles POST /api/v1/resources/:id/download
func (h *ResourceHandler) DownloadResource(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	id, ok := resourceID(c)
	if !ok {
		return response.BadRequest(c, "Invalid resource ID")
	}
	url, err := h.service.Download(c.UserContext(), id, userID, middleware.IsAdmin(c))
	if err != nil {
		return resourceError(c, err)
	}
	return response.Success(c, fiber.Map{"url": url})
}

// RateResource handles POST /api/v1/resources/:id/rating
func (h *ResourceHandler) RateResource(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	id, ok := resourceID(c)
	if !ok {
		return response.BadRequest(c, "Invalid resource ID")
	}
	var req RateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	r, err := h.service.Rate(c.UserContext(), id, userID, req.Stars)
	if err != nil {
		return resourceError(c, err)
	}
	return response.Success(c, fiber.Map{"rating": r.Rating, "rating_count": r.RatingCount})
}
