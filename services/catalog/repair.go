package catalog

import (
	"context"
	"fmt"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/utils/logger"
	"gorm.io/gorm"
)

// RepairReport summarises one RepairMissingYears run
type RepairReport struct {
	CoursesMissing  int    `json:"courses_missing"`
	CoursesRepaired []uint `json:"courses_repaired"`
	YearsCreated    int    `json:"years_created"`
}

// GenerateYears builds duration Year rows with two semester labels each
func GenerateYears(courseID uint, duration int) []model.Year {
	if duration <= 0 {
		duration = 4
	}
	years := make([]model.Year, 0, duration)
	for n := 1; n <= duration; n++ {
		years = append(years, model.Year{
			CourseID:   courseID,
			YearNumber: n,
			Semesters:  SemesterLabels(n, nil),
		})
	}
	return years
}

// RepairMissingYears creates years for every course that has none
func (s *Service) RepairMissingYears(ctx context.Context) (*RepairReport, error) {
	var courses []model.Course
	err := s.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM years WHERE years.course_id = courses.id)").
		Order("id ASC").
		Find(&courses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find courses without years: %w", err)
	}

	report := &RepairReport{CoursesMissing: len(courses), CoursesRepaired: []uint{}}

	for _, course := range courses {
		years := GenerateYears(course.ID, course.Duration)
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(&years).Error
		})
		if err != nil {
			logger.Error().Err(err).Uint("course_id", course.ID).Msg("failed to repair years")
			continue
		}
		report.CoursesRepaired = append(report.CoursesRepaired, course.ID)
		report.YearsCreated += len(years)
	}

	logger.Info().
		Int("courses_repaired", len(report.CoursesRepaired)).
		Int("years_created", report.YearsCreated).
		Msg("year repair finished")
	return report, nil
}
