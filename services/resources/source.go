package resources

import (
	"context"
	"fmt"
	"strings"

	"github.com/campusflow/campus-flow-api/model"
	"gorm.io/gorm"
)

// GORMSource runs pipeline queries against the database
type GORMSource struct {
	db *gorm.DB
}

func NewGORMSource(db *gorm.DB) *GORMSource {
	return &GORMSource{db: db}
}

func (s *GORMSource) YearIDsByNumber(ctx context.Context, yearNumber int) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&model.Year{}).
		Where("year_number = ?", yearNumber).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to resolve year number: %w", err)
	}
	return ids, nil
}

// CourseIDsByNamePrefix matches course names starting with term, case-insensitively
func (s *GORMSource) CourseIDsByNamePrefix(ctx context.Context, term string) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&model.Course{}).
		Where(`LOWER(name) LIKE ? ESCAPE '\'`, escapeLike(strings.ToLower(term))+"%").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search courses: %w", err)
	}
	return ids, nil
}

func (s *GORMSource) Resources(ctx context.Context, q Query) ([]model.Resource, error) {
	tx := s.db.WithContext(ctx).Model(&model.Resource{})

	if q.Status != nil {
		tx = tx.Where("status = ?", *q.Status)
	}
	if q.CollegeID != nil {
		tx = tx.Where("college_id = ?", *q.CollegeID)
	}
	if q.CourseID != nil {
		tx = tx.Where("course_id = ?", *q.CourseID)
	}
	if q.YearID != nil {
		tx = tx.Where("year_id = ?", *q.YearID)
	}
	if len(q.YearIDs) > 0 {
		tx = tx.Where("year_id IN ?", q.YearIDs)
	}
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.Subject != "" {
		tx = tx.Where("LOWER(subject) = ?", strings.ToLower(q.Subject))
	}
	if q.UploaderID != nil {
		tx = tx.Where("uploader_id = ?", *q.UploaderID)
	}
	if q.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Search)) + "%"
		match := s.db.Where(`LOWER(title) LIKE ? ESCAPE '\'`, pattern).
			Or(`LOWER(subject) LIKE ? ESCAPE '\'`, pattern).
			Or(`LOWER(description) LIKE ? ESCAPE '\'`, pattern)
		if len(q.SearchCourseIDs) > 0 {
			match = match.Or("course_id IN ?", q.SearchCourseIDs)
		}
		tx = tx.Where(match)
	}

	var rows []model.Resource
	if err := tx.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch resources: %w", err)
	}
	return rows, nil
}

func (s *GORMSource) UploaderNames(ctx context.Context, userIDs []uint) (map[uint]string, error) {
	var profiles []model.Profile
	err := s.db.WithContext(ctx).Select("id", "full_name").
		Where("id IN ?", userIDs).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load uploader names: %w", err)
	}

	names := make(map[uint]string, len(profiles))
	for _, p := range profiles {
		names[p.ID] = p.FullName
	}
	return names, nil
}

func (s *GORMSource) YearNumbers(ctx context.Context, yearIDs []uint) (map[uint]int, error) {
	var years []model.Year
	err := s.db.WithContext(ctx).Select("id", "year_number").
		Where("id IN ?", yearIDs).
		Find(&years).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load year numbers: %w", err)
	}

	numbers := make(map[uint]int, len(years))
	for _, y := range years {
		numbers[y.ID] = y.YearNumber
	}
	return numbers, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes LIKE wildcards typed by the user match literally; pair it with ESCAPE '\'
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
