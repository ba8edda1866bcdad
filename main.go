package main

import (
	"os"

	"github.com/campusflow/campus-flow-api/app"
	"github.com/campusflow/campus-flow-api/utils/logger"
)

func main() {
	if err := app.SetupAndRunServer(); err != nil {
		logger.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}
