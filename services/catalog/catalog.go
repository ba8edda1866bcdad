package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/utils/dberrors"
	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// Service reads and maintains the College -> Course -> Year hierarchy
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// DedupYears orders years by year_number and keeps the first row seen for each number
func DedupYears(years []model.Year) []model.Year {
	sorted := make([]model.Year, len(years))
	copy(sorted, years)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].YearNumber < sorted[j].YearNumber
	})

	out := sorted[:0]
	seen := make(map[int]bool, len(sorted))
	for _, y := range sorted {
		if seen[y.YearNumber] {
			continue
		}
		seen[y.YearNumber] = true
		out = append(out, y)
	}
	return out
}

func wrapNotFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

func (s *Service) Colleges(ctx context.Context) ([]model.College, error) {
	var colleges []model.College
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&colleges).Error; err != nil {
		return nil, fmt.Errorf("failed to list colleges: %w", err)
	}
	return colleges, nil
}

// SearchColleges matches the name case-insensitively
func (s *Service) SearchColleges(ctx context.Context, term string) ([]model.College, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return s.Colleges(ctx)
	}
	var colleges []model.College
	err := s.db.WithContext(ctx).
		Where("LOWER(name) LIKE ? OR LOWER(location) LIKE ?", "%"+term+"%", "%"+term+"%").
		Order("name ASC").
		Find(&colleges).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search colleges: %w", err)
	}
	return colleges, nil
}

func (s *Service) College(ctx context.Context, id uint) (*model.College, error) {
	var college model.College
	if err := s.db.WithContext(ctx).First(&college, id).Error; err != nil {
		return nil, wrapNotFound(err, "college")
	}
	return &college, nil
}

func (s *Service) CreateCollege(ctx context.Context, college *model.College) error {
	if err := s.db.WithContext(ctx).Create(college).Error; err != nil {
		if dberrors.IsDuplicate(err) {
			return fmt.Errorf("college %q: %w", college.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to create college: %w", err)
	}
	return nil
}

// UpdateCollege applies non-zero fields of patch
func (s *Service) UpdateCollege(ctx context.Context, id uint, patch model.College) (*model.College, error) {
	college, err := s.College(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(college).Updates(patch).Error; err != nil {
		if dberrors.IsDuplicate(err) {
			return nil, fmt.Errorf("college %q: %w", patch.Name, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to update college: %w", err)
	}
	return s.College(ctx, id)
}

func (s *Service) DeleteCollege(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.College{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete college: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("college: %w", ErrNotFound)
	}
	return nil
}

func (s *Service) Courses(ctx context.Context, collegeID uint) ([]model.Course, error) {
	var courses []model.Course
	err := s.db.WithContext(ctx).
		Where("college_id = ?", collegeID).
		Order("name ASC").
		Find(&courses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

func (s *Service) Course(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	if err := s.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return nil, wrapNotFound(err, "course")
	}
	return &course, nil
}

// CreateCourse also generates its years so uploads never meet a course without any
func (s *Service) CreateCourse(ctx context.Context, course *model.Course) error {
	if _, err := s.College(ctx, course.CollegeID); err != nil {
		return err
	}
	if course.Duration <= 0 {
		course.Duration = 4
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(course).Error; err != nil {
			return fmt.Errorf("failed to create course: %w", err)
		}
		years := GenerateYears(course.ID, course.Duration)
		if err := tx.Create(&years).Error; err != nil {
			return fmt.Errorf("failed to create years: %w", err)
		}
		return nil
	})
}

func (s *Service) UpdateCourse(ctx context.Context, id uint, patch model.Course) (*model.Course, error) {
	course, err := s.Course(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.CollegeID = 0 // moving a course between colleges is not supported
	if err := s.db.WithContext(ctx).Model(course).Updates(patch).Error; err != nil {
		return nil, fmt.Errorf("failed to update course: %w", err)
	}
	return s.Course(ctx, id)
}

func (s *Service) DeleteCourse(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.Course{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete course: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("course: %w", ErrNotFound)
	}
	return nil
}

// Years returns the de-duplicated years of a course
func (s *Service) Years(ctx context.Context, courseID uint) ([]model.Year, error) {
	var years []model.Year
	err := s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("year_number ASC, id ASC").
		Find(&years).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list years: %w", err)
	}
	return DedupYears(years), nil
}

func (s *Service) Year(ctx context.Context, id uint) (*model.Year, error) {
	var year model.Year
	if err := s.db.WithContext(ctx).First(&year, id).Error; err != nil {
		return nil, wrapNotFound(err, "year")
	}
	return &year, nil
}

// CreateYear rejects a second row with the same year_number for a course
func (s *Service) CreateYear(ctx context.Context, year *model.Year) error {
	if _, err := s.Course(ctx, year.CourseID); err != nil {
		return err
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Year{}).
		Where("course_id = ? AND year_number = ?", year.CourseID, year.YearNumber).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check years: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("year %d: %w", year.YearNumber, ErrDuplicate)
	}
	if len(year.Semesters) == 0 {
		year.Semesters = SemesterLabels(year.YearNumber, year.TotalSemesters)
	}
	if err := s.db.WithContext(ctx).Create(year).Error; err != nil {
		if dberrors.IsDuplicate(err) {
			return fmt.Errorf("year %d: %w", year.YearNumber, ErrDuplicate)
		}
		return fmt.Errorf("failed to create year: %w", err)
	}
	return nil
}

func (s *Service) DeleteYear(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&model.Year{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete year: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("year: %w", ErrNotFound)
	}
	return nil
}

// YearIDsByNumber resolves every Year row with the given number, across all courses
func (s *Service) YearIDsByNumber(ctx context.Context, yearNumber int) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&model.Year{}).
		Where("year_number = ?", yearNumber).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve year number: %w", err)
	}
	return ids, nil
}
