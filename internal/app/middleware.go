package app

import (
	"github.com/edubridge/progress-backend/internal/http/middleware"
	"github.com/edubridge/progress-backend/internal/logger"
)

type Middleware struct {
	Auth      *middleware.AuthMiddleware
	ServerKey *middleware.ServerKeyMiddleware
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth:      middleware.NewAuthMiddleware(log, cfg.JWTSecretKey),
		ServerKey: middleware.NewServerKeyMiddleware(log, cfg.WebhookServerKey),
	}
}
