package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/edubridge/progress-backend/internal/http/handlers"
	"github.com/edubridge/progress-backend/internal/http/middleware"
	"github.com/edubridge/progress-backend/internal/logger"
)

type RouterConfig struct {
	Log                 *logger.Logger
	AuthMiddleware      *middleware.AuthMiddleware
	ServerKeyMiddleware *middleware.ServerKeyMiddleware
	HealthHandler       *handlers.HealthHandler
	ProgressHandler     *handlers.ProgressHandler
	WebhookHandler      *handlers.WebhookHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(cfg.Log))

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", "X-Server-Key"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", cfg.HealthHandler.Healthcheck)

	// ===============
	// || Webhooks  ||
	// ===============
	webhooks := router.Group("/api/v1/progress/webhook")
	webhooks.Use(cfg.ServerKeyMiddleware.RequireServerKey())
	{
		webhooks.POST("/enrollment-updated", cfg.WebhookHandler.EnrollmentUpdated)
		webhooks.POST("/course-updated", cfg.WebhookHandler.CourseUpdated)
		webhooks.POST("/video-updated", cfg.WebhookHandler.VideoUpdated)
	}

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/api/v1/progress")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	{
		protected.GET("/user", cfg.ProgressHandler.GetCurrentUser)
		protected.POST("/video/:userId/bulk",
			cfg.AuthMiddleware.RequireUserMatch("userId"),
			cfg.ProgressHandler.UpdateVideoProgressBulk)
		protected.POST("/video/:userId/:videoId",
			cfg.AuthMiddleware.RequireUserMatch("userId"),
			cfg.ProgressHandler.UpdateVideoProgress)
		protected.GET("/summary/:userId",
			cfg.AuthMiddleware.RequireUserMatch("userId"),
			cfg.ProgressHandler.GetProgressSummary)
	}

	return router
}
