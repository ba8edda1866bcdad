package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/campusflow/campus-flow-api/api"
	"github.com/campusflow/campus-flow-api/config"
	"github.com/campusflow/campus-flow-api/database"
	auth_handlers "github.com/campusflow/campus-flow-api/handlers/auth"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/router"
	"github.com/campusflow/campus-flow-api/services"
	"github.com/campusflow/campus-flow-api/services/admin"
	"github.com/campusflow/campus-flow-api/services/catalog"
	"github.com/campusflow/campus-flow-api/services/cron"
	"github.com/campusflow/campus-flow-api/services/gamification"
	"github.com/campusflow/campus-flow-api/services/library"
	"github.com/campusflow/campus-flow-api/services/onboarding"
	"github.com/campusflow/campus-flow-api/services/profile"
	"github.com/campusflow/campus-flow-api/services/resources"
	"github.com/campusflow/campus-flow-api/services/storage"
	"github.com/campusflow/campus-flow-api/utils/auth"
	"github.com/campusflow/campus-flow-api/utils/cache"
	"github.com/campusflow/campus-flow-api/utils/logger"
)

const (
	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
	resourceListTTL = 5 * time.Minute
)

func SetupAndRunServer() error {
	// .env is optional outside development
	if err := config.LoadENV(); err != nil {
		logger.Warn().Err(err).Msg("no .env file loaded")
	}

	env, err := config.Get()
	if err != nil {
		return err
	}

	logger.Configure(logger.Config{Level: env.LOG_LEVEL, Pretty: env.LOG_PRETTY})
	log := logger.Component("app")

	if env.JWT_SECRET == "" {
		return errors.New("JWT_SECRET environment variable is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := database.StartGORM(env)
	if err != nil {
		log.Error().Msg("check whether PostgreSQL is running (make docker-up or make db-up)")
		return err
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to initialize database tables: %w", err)
	}
	db := store.DB()

	hub := realtime.NewHub(logger.Component("realtime"))

	// Redis backs the caches and fans hub events out to other instances.
	// Without it everything stays in process.
	var appCache cache.Cache
	redisCache, err := cache.NewRedisCache(env.REDIS_URL)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, using in-memory cache and a single-instance hub")
		appCache = cache.NewMemoryCache()
	} else {
		defer redisCache.Close()
		appCache = redisCache
		bridge := realtime.NewRedisBridge(redisCache.GetClient(), hub, logger.Component("redis_bridge"))
		bridge.ForwardChanges = !env.REALTIME_LISTEN
		bridge.Start(ctx)
	}

	if env.REALTIME_LISTEN {
		listener := realtime.NewListener(database.DSN(env), database.ChangeFeedChannel, hub, logger.Component("pglisten"))
		go func() {
			if err := listener.Run(ctx); err != nil {
				log.Error().Err(err).Msg("change feed listener stopped")
			}
		}()
	}

	var objectStore storage.ObjectStore = storage.Disabled{}
	s3Store, err := storage.NewS3Store(storage.ConfigFromEnv(env))
	switch {
	case err == nil:
		objectStore = s3Store
	case errors.Is(err, storage.ErrNotConfigured):
		log.Warn().Msg("object storage not configured, file uploads are disabled")
	default:
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	email := services.NewEmailService(env)
	if !email.IsConfigured() {
		log.Warn().Msg("SENDGRID_API_KEY not set, moderation emails are disabled")
	}

	// A nil *GoogleVerifier must not reach the handler as a non-nil interface
	var google auth_handlers.GoogleVerifier
	if env.GOOGLE_CLIENT_ID != "" {
		google = auth.NewGoogleVerifier(env.GOOGLE_CLIENT_ID)
	}

	blacklist := auth.NewBlacklistService(db)
	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        env.JWT_SECRET,
		Expiry:        accessTokenTTL,
		RefreshExpiry: refreshTokenTTL,
		Issuer:        env.JWT_ISSUER,
	})

	notifications := services.NewNotificationService(db, hub)
	activity := services.NewActivityService(db)
	catalogService := catalog.NewService(db)
	profiles := profile.NewService(db, blacklist, hub)
	gamificationService := gamification.NewService(db, appCache, hub, notifications)
	libraryService := library.NewService(db, hub, gamificationService)
	resourceService := resources.NewService(resources.Deps{
		DB:            db,
		Cache:         appCache,
		Store:         objectStore,
		Publisher:     hub,
		Notifications: notifications,
		Mailer:        email,
		Progress:      gamificationService,
		CacheTTL:      resourceListTTL,
	})
	onboardingService := onboarding.NewService(catalogService, profiles, onboarding.NewCacheStore(appCache), hub, env.ONBOARDING_AUTO_ADVANCE)
	stats := admin.NewStatsService(db)
	audit := admin.NewAuditService(db)

	go resourceService.Queries().Watch(ctx, hub)
	go libraryService.Watch(ctx, hub, library.DefaultIdleTTL)
	go admin.NewWatcher(stats, hub, logger.Component("admin_stats")).Run(ctx)

	var cronManager *cron.CronManager
	if env.CRON_ENABLED {
		cronManager = cron.NewCronManager(db, cron.Deps{
			Missions:      gamificationService,
			Badges:        gamificationService,
			Activity:      activity,
			Notifications: notifications,
			Tokens:        blacklist,
			Years:         catalogService,
		})
		if err := cronManager.Start(); err != nil {
			// scheduled jobs are not needed to serve requests
			log.Warn().Err(err).Msg("failed to start cron jobs")
			cronManager = nil
		}
	}
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
	}()

	server := api.NewAPIServer(fmt.Sprintf(":%d", env.PORT), store, logger.Component("api"))

	router.SetupRoutes(server.GetEngine(), store, &router.Dependencies{
		Env:           env,
		Cache:         appCache,
		Hub:           hub,
		JWT:           jwtManager,
		Google:        google,
		Catalog:       catalogService,
		Profiles:      profiles,
		Onboarding:    onboardingService,
		Resources:     resourceService,
		Library:       libraryService,
		Notifications: notifications,
		Gamification:  gamificationService,
		Stats:         stats,
		Audit:         audit,
	})

	return server.Run(ctx)
}
