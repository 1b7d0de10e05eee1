package app

import (
	"github.com/gin-gonic/gin"

	"github.com/edubridge/progress-backend/internal/logger"
	"github.com/edubridge/progress-backend/internal/server"
)

func wireRouter(log *logger.Logger, handlerset Handlers, mw Middleware) *gin.Engine {
	log.Info("Wiring router...")
	return server.NewRouter(server.RouterConfig{
		Log:                 log,
		AuthMiddleware:      mw.Auth,
		ServerKeyMiddleware: mw.ServerKey,
		HealthHandler:       handlerset.Health,
		ProgressHandler:     handlerset.Progress,
		WebhookHandler:      handlerset.Webhook,
	})
}
