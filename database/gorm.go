package database

import (
	"fmt"
	"time"

	"github.com/campusflow/campus-flow-api/config"
	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/utils/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type GORMStore struct {
	db *gorm.DB
}

// StartGORM opens the PostgreSQL connection pool
func StartGORM(env *config.EnvironmentVariable) (*GORMStore, error) {
	gormLogger := gormlogger.Default.LogMode(gormlogger.Info)
	if env.IsProduction() {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Error)
	}

	db, err := gorm.Open(postgres.Open(DSN(env)), &gorm.Config{
		Logger:         gormLogger,
		PrepareStmt:    true,
		TranslateError: true, // unique violations surface as gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to PostgreSQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Info().Str("host", env.DB_HOST).Str("db", env.DB_NAME).Msg("connected to PostgreSQL")

	return &GORMStore{db: db}, nil
}

// NewGORMStore wraps an already opened connection (tests, CLIs)
func NewGORMStore(db *gorm.DB) *GORMStore {
	return &GORMStore{db: db}
}

// Models lists every table owned by the service, parents before children
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Profile{},

		&model.College{},
		&model.Course{},
		&model.Year{},

		&model.Resource{},
		&model.ResourceRating{},
		&model.SavedResource{},
		&model.UserActivity{},

		&model.Notification{},

		&model.Mission{},
		&model.MissionAssignment{},
		&model.Badge{},
		&model.UserBadge{},

		&model.JWTTokenBlacklist{},
		&model.CronJobLog{},
		&model.AdminAuditLog{},
	}
}

// Init runs AutoMigrate and, on PostgreSQL, installs the change feed triggers
func (s *GORMStore) Init() error {
	logger.Info().Msg("running AutoMigrate")

	if err := s.db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}

	if s.db.Dialector.Name() == "postgres" {
		if err := InstallYearUniqueIndex(s.db); err != nil {
			// legacy databases may already hold duplicate years; reads de-duplicate
			logger.Warn().Err(err).Msg("skipping unique (course_id, year_number) index")
		}
		if err := InstallChangeFeed(s.db); err != nil {
			return fmt.Errorf("failed to install change feed: %w", err)
		}
	}

	logger.Info().Msg("AutoMigrate completed")
	return nil
}

func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

func (s *GORMStore) HealthCheck() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
