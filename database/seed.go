package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/utils/auth"
	"github.com/campusflow/campus-flow-api/utils/logger"
)

// YearGenerator creates the years of courses that have none and returns how
// many rows it inserted
type YearGenerator func(ctx context.Context) (int, error)

// Seeder handles database seeding operations
type Seeder struct {
	db    *gorm.DB
	years YearGenerator
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, years YearGenerator) *Seeder {
	return &Seeder{db: db, years: years}
}

// SeedAll runs every seed in foreign key order. Each step is safe to re-run.
func (s *Seeder) SeedAll() error {
	logger.Info().Msg("starting database seeding")

	steps := []struct {
		name string
		run  func() error
	}{
		{"admin user", s.SeedAdminUser},
		{"colleges", s.SeedColleges},
		{"courses", s.SeedCourses},
		{"years", s.SeedYears},
		{"missions", s.SeedMissions},
		{"badges", s.SeedBadges},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("failed to seed %s: %w", step.name, err)
		}
	}

	logger.Info().Msg("database seeding completed")
	return nil
}

// SeedAdminUser creates a superadmin from ADMIN_EMAIL and ADMIN_PASSWORD
func (s *Seeder) SeedAdminUser() error {
	var count int64
	if err := s.db.Model(&model.Profile{}).Where("role = ?", model.RoleSuperAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Info().Msg("superadmin already exists, skipping")
		return nil
	}

	adminEmail := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		logger.Warn().Msg("ADMIN_EMAIL and ADMIN_PASSWORD not set, skipping admin user creation")
		return nil
	}

	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var user model.User
		err := tx.Where("email = ?", adminEmail).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = model.User{
				Email:        adminEmail,
				PasswordHash: passwordHash,
				Provider:     model.ProviderPassword,
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		}

		// an existing account with that email is promoted
		profile := model.Profile{ID: user.ID, FullName: "System Administrator", Role: model.RoleSuperAdmin}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"role": model.RoleSuperAdmin}),
		}).Create(&profile).Error
		if err != nil {
			return err
		}

		logger.Info().Str("email", adminEmail).Msg("created superadmin")
		return nil
	})
}

// SeedColleges creates sample colleges
func (s *Seeder) SeedColleges() error {
	var count int64
	if err := s.db.Model(&model.College{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Info().Msg("colleges already exist, skipping")
		return nil
	}

	colleges := []model.College{
		{Name: "Maulana Azad National Institute of Technology", Location: "Bhopal, Madhya Pradesh", Established: 1960},
		{Name: "University Institute of Technology RGPV", Location: "Bhopal, Madhya Pradesh", Established: 1986},
		{Name: "Shri Govindram Seksaria Institute of Technology and Science", Location: "Indore, Madhya Pradesh", Established: 1952},
	}
	if err := s.db.Create(&colleges).Error; err != nil {
		return err
	}

	logger.Info().Int("count", len(colleges)).Msg("created colleges")
	return nil
}

// SeedCourses gives every seeded college the same small set of programmes
func (s *Seeder) SeedCourses() error {
	var count int64
	if err := s.db.Model(&model.Course{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Info().Msg("courses already exist, skipping")
		return nil
	}

	var colleges []model.College
	if err := s.db.Order("id ASC").Find(&colleges).Error; err != nil {
		return err
	}
	if len(colleges) == 0 {
		return fmt.Errorf("no colleges found, seed colleges first")
	}

	templates := []model.Course{
		{Name: "Bachelor of Technology in Computer Science", Code: "BTECH-CSE", Duration: 4, Seats: 120},
		{Name: "Bachelor of Technology in Electronics", Code: "BTECH-ECE", Duration: 4, Seats: 60},
		{Name: "Master of Computer Applications", Code: "MCA", Duration: 2, Seats: 60},
	}

	courses := make([]model.Course, 0, len(colleges)*len(templates))
	for _, college := range colleges {
		for _, tpl := range templates {
			c := tpl
			c.CollegeID = college.ID
			courses = append(courses, c)
		}
	}
	if err := s.db.Create(&courses).Error; err != nil {
		return err
	}

	logger.Info().Int("count", len(courses)).Msg("created courses")
	return nil
}

// SeedYears fills in years for courses that have none
func (s *Seeder) SeedYears() error {
	created, err := s.years(context.Background())
	if err != nil {
		return err
	}
	logger.Info().Int("count", created).Msg("created years")
	return nil
}

// DefaultMissions are the daily missions every student is assigned
func DefaultMissions() []model.Mission {
	return []model.Mission{
		{Key: "daily_download", Title: "Study session", Description: "Download 3 resources", Action: model.ActivityTypeDownload, Target: 3, CoinReward: 5, XPReward: 10, Active: true},
		{Key: "daily_upload", Title: "Share your notes", Description: "Upload a resource", Action: model.ActivityTypeUpload, Target: 1, CoinReward: 15, XPReward: 25, Active: true},
		{Key: "daily_rate", Title: "Critic", Description: "Rate 2 resources", Action: model.ActivityTypeRate, Target: 2, CoinReward: 5, XPReward: 10, Active: true},
		{Key: "daily_save", Title: "Collector", Description: "Save a resource to your library", Action: model.ActivityTypeSave, Target: 1, CoinReward: 3, XPReward: 5, Active: true},
	}
}

// DefaultBadges are the badges awarded by the hourly evaluation
func DefaultBadges() []model.Badge {
	return []model.Badge{
		{Key: "first_upload", Name: "First Upload", Description: "Had a resource approved", Icon: "upload", Criteria: model.BadgeCriteriaUploads, Threshold: 1},
		{Key: "contributor", Name: "Contributor", Description: "Had 10 resources approved", Icon: "layers", Criteria: model.BadgeCriteriaUploads, Threshold: 10},
		{Key: "popular", Name: "Popular", Description: "Your resources were downloaded 100 times", Icon: "trending-up", Criteria: model.BadgeCriteriaDownloads, Threshold: 100},
		{Key: "saver", Name: "Saver", Description: "Collected 100 coins", Icon: "coins", Criteria: model.BadgeCriteriaCoins, Threshold: 100},
		{Key: "rich", Name: "Treasurer", Description: "Collected 1000 coins", Icon: "gem", Criteria: model.BadgeCriteriaCoins, Threshold: 1000},
	}
}

// SeedMissions inserts missing default missions; existing keys are left alone
func (s *Seeder) SeedMissions() error {
	missions := DefaultMissions()
	res := s.db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).Create(&missions)
	if res.Error != nil {
		return res.Error
	}
	logger.Info().Int64("count", res.RowsAffected).Msg("created missions")
	return nil
}

// SeedBadges inserts missing default badges; existing keys are left alone
func (s *Seeder) SeedBadges() error {
	badges := DefaultBadges()
	res := s.db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "key"}}, DoNothing: true}).Create(&badges)
	if res.Error != nil {
		return res.Error
	}
	logger.Info().Int64("count", res.RowsAffected).Msg("created badges")
	return nil
}

// RunSeeds is a convenience function to run all seeds
func RunSeeds(db *gorm.DB, years YearGenerator) error {
	return NewSeeder(db, years).SeedAll()
}
