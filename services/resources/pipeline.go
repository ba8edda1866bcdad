package resources

import (
	"context"
	"sort"

	"github.com/campusflow/campus-flow-api/model"
)

// Query is what the pipeline asks a Source for after resolving secondary lookups
type Query struct {
	Status          *model.ResourceStatus
	CollegeID       *uint
	CourseID        *uint
	YearID          *uint
	YearIDs         []uint // set when a year number was resolved
	Type            model.ResourceType
	Subject         string
	UploaderID      *uint
	Search          string
	SearchCourseIDs []uint
}

// Source is the data access the pipeline needs
type Source interface {
	YearIDsByNumber(ctx context.Context, yearNumber int) ([]uint, error)
	CourseIDsByNamePrefix(ctx context.Context, term string) ([]uint, error)
	Resources(ctx context.Context, q Query) ([]model.Resource, error)
	UploaderNames(ctx context.Context, userIDs []uint) (map[uint]string, error)
	YearNumbers(ctx context.Context, yearIDs []uint) (map[uint]int, error)
}

// Item is a resource with the display fields resolved from other tables
type Item struct {
	model.Resource
	UploaderName string `json:"uploader_name"`
	YearNumber   *int   `json:"year_number,omitempty"`
}

// Run executes the filter against src: resolve, fetch, enrich, sort.
func Run(ctx context.Context, src Source, f Filter) ([]Item, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	f = f.Normalize()

	q := Query{
		CollegeID:  f.CollegeID.Ptr(),
		CourseID:   f.CourseID.Ptr(),
		YearID:     f.YearID.Ptr(),
		Type:       f.Type,
		Subject:    f.Subject,
		UploaderID: f.UploaderID.Ptr(),
		Search:     f.SearchTerm,
	}
	// uploaders see their own pending and rejected rows
	if q.UploaderID == nil {
		approved := model.ResourceStatusApproved
		q.Status = &approved
	}

	if f.YearNumber != nil {
		ids, err := src.YearIDsByNumber(ctx, *f.YearNumber)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []Item{}, nil
		}
		q.YearIDs = ids
	}

	if q.Search != "" {
		ids, err := src.CourseIDsByNamePrefix(ctx, q.Search)
		if err != nil {
			return nil, err
		}
		q.SearchCourseIDs = ids
	}

	rows, err := src.Resources(ctx, q)
	if err != nil {
		return nil, err
	}

	items, err := enrich(ctx, src, rows)
	if err != nil {
		return nil, err
	}
	SortItems(items, f.Sort)
	return items, nil
}

func enrich(ctx context.Context, src Source, rows []model.Resource) ([]Item, error) {
	items := make([]Item, len(rows))
	if len(rows) == 0 {
		return items, nil
	}

	uploaderIDs := make([]uint, 0, len(rows))
	yearIDs := make([]uint, 0, len(rows))
	seenUploader := make(map[uint]bool)
	seenYear := make(map[uint]bool)
	for _, r := range rows {
		if !seenUploader[r.UploaderID] {
			seenUploader[r.UploaderID] = true
			uploaderIDs = append(uploaderIDs, r.UploaderID)
		}
		if r.YearID != nil && !seenYear[*r.YearID] {
			seenYear[*r.YearID] = true
			yearIDs = append(yearIDs, *r.YearID)
		}
	}

	names, err := src.UploaderNames(ctx, uploaderIDs)
	if err != nil {
		return nil, err
	}
	numbers := map[uint]int{}
	if len(yearIDs) > 0 {
		if numbers, err = src.YearNumbers(ctx, yearIDs); err != nil {
			return nil, err
		}
	}

	for i, r := range rows {
		items[i] = Item{Resource: r, UploaderName: names[r.UploaderID]}
		if items[i].UploaderName == "" {
			items[i].UploaderName = "Anonymous"
		}
		if r.YearID != nil {
			if n, ok := numbers[*r.YearID]; ok {
				items[i].YearNumber = &n
			}
		}
	}
	return items, nil
}

// SortItems orders items in place; ties keep their fetched order
func SortItems(items []Item, by Sort) {
	var less func(a, b *Item) bool
	switch by {
	case SortPopular:
		less = func(a, b *Item) bool { return a.Downloads > b.Downloads }
	case SortRating:
		less = func(a, b *Item) bool { return a.Rating > b.Rating }
	default:
		less = func(a, b *Item) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(items, func(i, j int) bool { return less(&items[i], &items[j]) })
}
