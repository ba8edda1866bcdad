package main

import (
	"context"

	"github.com/campusflow/campus-flow-api/config"
	"github.com/campusflow/campus-flow-api/database"
	"github.com/campusflow/campus-flow-api/services/catalog"
	"github.com/campusflow/campus-flow-api/utils/logger"
)

func main() {
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

	if err := store.Init(); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	cat := catalog.NewService(store.DB())
	years := func(ctx context.Context) (int, error) {
		report, err := cat.RepairMissingYears(ctx)
		if err != nil {
			return 0, err
		}
		return report.YearsCreated, nil
	}

	if err := database.RunSeeds(store.DB(), years); err != nil {
		logger.Fatal().Err(err).Msg("seeding failed")
	}

	logger.Info().Msg("superadmin is created from ADMIN_EMAIL and ADMIN_PASSWORD when both are set")
}
