package resources

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/utils/validation"
)

var (
	ErrConflictingYearFilter = errors.New("year_id and year_number cannot be combined")
	ErrInvalidSort           = errors.New("sort must be one of recent, popular, rating")
	ErrInvalidType           = errors.New("unknown resource type")
)

type Sort string

const (
	SortRecent  Sort = "recent"
	SortPopular Sort = "popular"
	SortRating  Sort = "rating"
)

// Filter selects resources. Zero fields are not applied; ids accept 3, "3" or {"id":3}.
type Filter struct {
	CollegeID  model.FlexibleID   `json:"college_id"`
	CourseID   model.FlexibleID   `json:"course_id"`
	YearID     model.FlexibleID   `json:"year_id"`
	YearNumber *int               `json:"year_number,omitempty"`
	Type       model.ResourceType `json:"type,omitempty"`
	Subject    string             `json:"subject,omitempty"`
	UploaderID model.FlexibleID   `json:"uploader_id"`
	SearchTerm string             `json:"search,omitempty"`
	Sort       Sort               `json:"sort,omitempty"`
}

// Normalize trims the search term and defaults the sort to recent
func (f Filter) Normalize() Filter {
	f.SearchTerm = strings.TrimSpace(f.SearchTerm)
	f.Subject = strings.TrimSpace(f.Subject)
	if f.Sort == "" {
		f.Sort = SortRecent
	}
	return f
}

// Validate rejects a year id combined with a year number, and unknown enums
func (f Filter) Validate() error {
	if f.YearID != 0 && f.YearNumber != nil {
		return ErrConflictingYearFilter
	}
	if f.YearNumber != nil && *f.YearNumber < 1 {
		return fmt.Errorf("year_number must be positive")
	}
	switch f.Sort {
	case "", SortRecent, SortPopular, SortRating:
	default:
		return ErrInvalidSort
	}
	if f.Type != "" && !validation.IsResourceType(string(f.Type)) {
		return ErrInvalidType
	}
	return nil
}

// CacheKey is stable for equal filters
func (f Filter) CacheKey() string {
	raw, _ := json.Marshal(f.Normalize())
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:])
}
