package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/campusflow/campus-flow-api/config"
	"github.com/campusflow/campus-flow-api/database"
	"github.com/campusflow/campus-flow-api/handlers"
	admin_handlers "github.com/campusflow/campus-flow-api/handlers/admin"
	auth_handlers "github.com/campusflow/campus-flow-api/handlers/auth"
	college_handlers "github.com/campusflow/campus-flow-api/handlers/college"
	course_handlers "github.com/campusflow/campus-flow-api/handlers/course"
	gamification_handlers "github.com/campusflow/campus-flow-api/handlers/gamification"
	notification_handlers "github.com/campusflow/campus-flow-api/handlers/notification"
	onboarding_handlers "github.com/campusflow/campus-flow-api/handlers/onboarding"
	resource_handlers "github.com/campusflow/campus-flow-api/handlers/resource"
	saved_handlers "github.com/campusflow/campus-flow-api/handlers/saved"
	"github.com/campusflow/campus-flow-api/handlers/stream"
	year_handlers "github.com/campusflow/campus-flow-api/handlers/year"
	"github.com/campusflow/campus-flow-api/realtime"
	"github.com/campusflow/campus-flow-api/services"
	"github.com/campusflow/campus-flow-api/services/admin"
	"github.com/campusflow/campus-flow-api/services/catalog"
	"github.com/campusflow/campus-flow-api/services/gamification"
	"github.com/campusflow/campus-flow-api/services/library"
	"github.com/campusflow/campus-flow-api/services/onboarding"
	"github.com/campusflow/campus-flow-api/services/profile"
	"github.com/campusflow/campus-flow-api/services/resources"
	"github.com/campusflow/campus-flow-api/utils"
	"github.com/campusflow/campus-flow-api/utils/auth"
	"github.com/campusflow/campus-flow-api/utils/cache"
	"github.com/campusflow/campus-flow-api/utils/middleware"
)

// Dependencies is everything the routes need, built once by the app package
type Dependencies struct {
	Env   *config.EnvironmentVariable
	Cache cache.Cache
	Hub   *realtime.Hub

	JWT    *auth.JWTManager
	Google auth_handlers.GoogleVerifier

	Catalog       *catalog.Service
	Profiles      *profile.Service
	Onboarding    *onboarding.Service
	Resources     *resources.Service
	Library       *library.Service
	Notifications *services.NotificationService
	Gamification  *gamification.Service
	Stats         *admin.StatsService
	Audit         *admin.AuditService
}

func SetupRoutes(app *fiber.App, store database.Storage, d *Dependencies) {
	db := store.DB()

	bruteForceProtection := middleware.NewBruteForceProtection(d.Cache)
	authMiddleware := middleware.NewAuthMiddleware(d.JWT, db, d.Profiles)
	onboarded := middleware.RequireOnboarding()

	authHandler := auth_handlers.NewAuthHandler(db, d.JWT, bruteForceProtection, d.Google, d.Profiles)
	onboardingHandler := onboarding_handlers.NewOnboardingHandler(d.Onboarding)
	collegeHandler := college_handlers.NewCollegeHandler(d.Catalog, d.Hub)
	courseHandler := course_handlers.NewCourseHandler(d.Catalog, d.Hub)
	yearHandler := year_handlers.NewYearHandler(d.Catalog, d.Hub)
	resourceHandler := resource_handlers.NewResourceHandler(d.Resources, d.Library)
	savedHandler := saved_handlers.NewSavedHandler(d.Library, d.Resources)
	notificationHandler := notification_handlers.NewNotificationHandler(d.Notifications)
	gamificationHandler := gamification_handlers.NewGamificationHandler(d.Gamification)
	adminHandler := admin_handlers.NewAdminHandler(d.Stats, d.Audit, d.Profiles, d.Resources, d.Hub)
	streamHandler := stream.NewHandler(d.Hub)

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    d.Env.ALLOWED_ORIGINS,
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})

	// Health check endpoint (public)
	app.Get("/ping", utils.MakeHTTPHandleFunc(handlers.HandleCheckHealth, store))
	app.Get("/health", utils.MakeHTTPHandleFunc(handlers.RealtimeHealth(d.Hub), store))

	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	authGroup.Post("/google", bruteForceProtection.CheckAndRecordAttempt(), authHandler.GoogleLogin)
	authGroup.Post("/refresh", authHandler.RefreshToken)
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)

	profileGroup := api.Group("/profile", authMiddleware.Required())
	profileGroup.Get("/", authHandler.GetProfile)
	profileGroup.Put("/", authHandler.UpdateProfile)

	// ==================== Catalog ====================

	api.Get("/colleges", collegeHandler.ListColleges)
	api.Get("/colleges/:id", collegeHandler.GetCollege)
	api.Get("/colleges/:college_id/courses", courseHandler.ListCourses)
	api.Get("/courses/:id", courseHandler.GetCourse)
	api.Get("/courses/:course_id/years", yearHandler.ListYears)

	// ==================== Student features ====================

	api.Get("/realtime", authMiddleware.Required(), streamHandler.Realtime)

	onboardingGroup := api.Group("/onboarding", authMiddleware.Required())
	onboardingGroup.Get("/", onboardingHandler.GetState)
	onboardingGroup.Post("/college", onboardingHandler.SelectCollege)
	onboardingGroup.Post("/course", onboardingHandler.SelectCourse)
	onboardingGroup.Post("/year", onboardingHandler.SelectYear)
	onboardingGroup.Post("/semester", onboardingHandler.SelectSemester)
	onboardingGroup.Post("/complete", onboardingHandler.Complete)
	onboardingGroup.Delete("/", onboardingHandler.Reset)

	resourceGroup := api.Group("/resources", authMiddleware.Required())
	resourceGroup.Get("/", resourceHandler.ListResources)
	resourceGroup.Get("/mine", resourceHandler.ListMine)
	resourceGroup.Get("/:id", resourceHandler.GetResource)
	resourceGroup.Post("/", onboarded, resourceHandler.CreateResource)
	resourceGroup.Put("/:id", onboarded, resourceHandler.UpdateResource)
	resourceGroup.Delete("/:id", resourceHandler.DeleteResource)
	resourceGroup.Post("/:id/download", resourceHandler.DownloadResource)
	resourceGroup.Post("/:id/rating", onboarded, resourceHandler.RateResource)

	savedGroup := api.Group("/saved", authMiddleware.Required(), onboarded)
	savedGroup.Get("/", savedHandler.ListSaved)
	savedGroup.Post("/:resource_id/toggle", savedHandler.ToggleSaved)

	notifications := api.Group("/notifications", authMiddleware.Required())
	notifications.Get("/", notificationHandler.GetNotifications)
	notifications.Get("/unread-count", notificationHandler.GetUnreadCount)
	notifications.Post("/read-all", notificationHandler.MarkAllAsRead)
	notifications.Post("/:id/read", notificationHandler.MarkAsRead)
	notifications.Post("/:id/toggle", notificationHandler.ToggleRead)
	notifications.Delete("/:id", notificationHandler.DeleteNotification)

	missions := api.Group("/missions", authMiddleware.Required(), onboarded)
	missions.Get("/", gamificationHandler.GetMissions)
	missions.Post("/:id/claim", gamificationHandler.ClaimMission)

	api.Get("/leaderboard", authMiddleware.Required(), gamificationHandler.GetLeaderboard)
	api.Get("/badges", authMiddleware.Required(), gamificationHandler.ListBadges)
	api.Get("/badges/mine", authMiddleware.Required(), gamificationHandler.MyBadges)

	// ==================== Admin ====================

	adminGroup := api.Group("/admin", authMiddleware.RequireAdmin())
	adminGroup.Get("/stats", adminHandler.GetStats)
	adminGroup.Get("/stats/stream", adminHandler.StreamStats)

	adminGroup.Get("/resources/pending", adminHandler.ListPending)
	adminGroup.Post("/resources/:id/moderate", adminHandler.ModerateResource)

	adminGroup.Get("/users", adminHandler.ListUsers)
	adminGroup.Post("/users/:id/ban", adminHandler.BanUser)
	adminGroup.Post("/users/:id/unban", adminHandler.UnbanUser)
	adminGroup.Put("/users/:id/role", authMiddleware.RequireRole("superadmin"), adminHandler.SetRole)

	adminGroup.Get("/audit", adminHandler.ListAuditLogs)
	adminGroup.Get("/audit/:id", adminHandler.GetAuditLog)

	// Catalog writes, recorded in the audit log by the middleware
	adminGroup.Post("/colleges", middleware.AdminAuditLog(d.Audit, "college_create", "colleges"), collegeHandler.CreateCollege)
	adminGroup.Put("/colleges/:id", middleware.AdminAuditLog(d.Audit, "college_update", "colleges"), collegeHandler.UpdateCollege)
	adminGroup.Delete("/colleges/:id", middleware.AdminAuditLog(d.Audit, "college_delete", "colleges"), collegeHandler.DeleteCollege)
	adminGroup.Post("/colleges/:college_id/courses", middleware.AdminAuditLog(d.Audit, "course_create", "courses"), courseHandler.CreateCourse)
	adminGroup.Put("/courses/:id", middleware.AdminAuditLog(d.Audit, "course_update", "courses"), courseHandler.UpdateCourse)
	adminGroup.Delete("/courses/:id", middleware.AdminAuditLog(d.Audit, "course_delete", "courses"), courseHandler.DeleteCourse)
	adminGroup.Post("/courses/:course_id/years", middleware.AdminAuditLog(d.Audit, "year_create", "years"), yearHandler.CreateYear)
	adminGroup.Delete("/years/:id", middleware.AdminAuditLog(d.Audit, "year_delete", "years"), yearHandler.DeleteYear)
}
