package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/campusflow/campus-flow-api/database"
	"github.com/campusflow/campus-flow-api/services/resources"
	"github.com/campusflow/campus-flow-api/utils/response"
)

const shutdownTimeout = 10 * time.Second

type APIServer struct {
	app           *fiber.App
	listenAddress string
	store         database.Storage
	logger        zerolog.Logger
}

func NewAPIServer(listenAddress string, store database.Storage, logger zerolog.Logger) *APIServer {
	app := fiber.New(fiber.Config{
		AppName:      "campus-flow-api",
		BodyLimit:    (resources.MaxFileSizeMB + 5) * 1024 * 1024,
		ErrorHandler: errorHandler,
	})
	return &APIServer{
		app:           app,
		listenAddress: listenAddress,
		store:         store,
		logger:        logger,
	}
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *APIServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.listenAddress).Msg("starting API server")
		errCh <- s.app.Listen(s.listenAddress)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down API server")
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return err
	}
	return <-errCh
}

// errorHandler keeps unhandled errors inside the standard response envelope
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return response.Error(c, code, err.Error(), "HTTP_ERROR")
}
