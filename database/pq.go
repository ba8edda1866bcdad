package database

import (
	"fmt"

	"github.com/campusflow/campus-flow-api/config"
	"gorm.io/gorm"
)

// Storage is what the server needs from the relational store
type Storage interface {
	Init() error
	Close() error
	HealthCheck() error
	DB() *gorm.DB
}

// DSN builds the libpq connection string shared by GORM and the LISTEN/NOTIFY listener
func DSN(env *config.EnvironmentVariable) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		env.DB_HOST,
		env.DB_USER_NAME,
		env.DB_PASSWORD,
		env.DB_NAME,
		env.DB_PORT,
		env.DB_SSL_MODE,
	)
}
