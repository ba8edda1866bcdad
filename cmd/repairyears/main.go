// Command repairyears creates the academic years of every course that has none.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/campusflow/campus-flow-api/config"
	"github.com/campusflow/campus-flow-api/database"
	"github.com/campusflow/campus-flow-api/services/catalog"
	"github.com/campusflow/campus-flow-api/utils/logger"
)

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "give up after this long")
	flag.Parse()

	if err := config.LoadENV(); err != nil {
		logger.Warn().Msg(".env file not found, using system environment variables")
	}

	env, err := config.Get()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read configuration")
	}
	logger.Configure(logger.Config{Level: env.LOG_LEVEL, Pretty: true})

	store, err := database.StartGORM(env)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := catalog.NewService(store.DB()).RepairMissingYears(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("repair failed")
	}

	logger.Info().
		Int("courses_missing", report.CoursesMissing).
		Int("courses_repaired", len(report.CoursesRepaired)).
		Int("years_created", report.YearsCreated).
		Msg("repair finished")
}
