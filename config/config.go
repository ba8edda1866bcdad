package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadENV loads the environment variables from .env when GO_ENV is unset or "development"
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnvironmentVariable struct {
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// Logging
	LOG_LEVEL  string
	LOG_PRETTY bool
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL string
	// CORS
	ALLOWED_ORIGINS string
	// Object storage (any S3 compatible endpoint)
	STORAGE_BUCKET     string
	STORAGE_REGION     string
	STORAGE_ENDPOINT   string
	STORAGE_ACCESS_KEY string
	STORAGE_SECRET_KEY string
	STORAGE_CDN_URL    string
	// Google sign-in
	GOOGLE_CLIENT_ID string
	// Email
	SENDGRID_API_KEY string
	MAIL_FROM        string
	APP_URL          string
	// Background work
	CRON_ENABLED    bool
	REALTIME_LISTEN bool
	// Onboarding
	ONBOARDING_AUTO_ADVANCE time.Duration
}

func Get() (*EnvironmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	autoAdvanceMS, err := strconv.Atoi(os.Getenv("ONBOARDING_AUTO_ADVANCE_MS"))
	if err != nil || autoAdvanceMS < 0 {
		autoAdvanceMS = 0
	}

	envVariables := &EnvironmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      getEnvOrDefault("DB_HOST", "localhost"),
		DB_PORT:      getEnvOrDefault("DB_PORT", "5432"),
		DB_SSL_MODE:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		PORT:         port,
		// Logging
		LOG_LEVEL:  getEnvOrDefault("LOG_LEVEL", "info"),
		LOG_PRETTY: os.Getenv("LOG_PRETTY") == "true",
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: getEnvOrDefault("JWT_ISSUER", "campus-flow-api"),
		// Redis
		REDIS_URL: getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		// CORS
		ALLOWED_ORIGINS: getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		// Storage
		STORAGE_BUCKET:     os.Getenv("STORAGE_BUCKET"),
		STORAGE_REGION:     getEnvOrDefault("STORAGE_REGION", "us-east-1"),
		STORAGE_ENDPOINT:   os.Getenv("STORAGE_ENDPOINT"),
		STORAGE_ACCESS_KEY: os.Getenv("STORAGE_ACCESS_KEY"),
		STORAGE_SECRET_KEY: os.Getenv("STORAGE_SECRET_KEY"),
		STORAGE_CDN_URL:    os.Getenv("STORAGE_CDN_URL"),
		// Google
		GOOGLE_CLIENT_ID: os.Getenv("GOOGLE_CLIENT_ID"),
		// Email
		SENDGRID_API_KEY: os.Getenv("SENDGRID_API_KEY"),
		MAIL_FROM:        getEnvOrDefault("MAIL_FROM", "noreply@campusflow.app"),
		APP_URL:          getEnvOrDefault("APP_URL", "http://localhost:3000"),
		// Background work, both default to enabled
		CRON_ENABLED:    os.Getenv("CRON_ENABLED") != "false",
		REALTIME_LISTEN: os.Getenv("REALTIME_LISTEN") != "false",
		// Onboarding
		ONBOARDING_AUTO_ADVANCE: time.Duration(autoAdvanceMS) * time.Millisecond,
	}

	return envVariables, nil
}

// IsProduction reports whether the service runs with GO_ENV=production
func (e *EnvironmentVariable) IsProduction() bool {
	return e.GO_ENV == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
