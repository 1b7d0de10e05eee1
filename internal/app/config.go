package app

import (
	"github.com/edubridge/progress-backend/internal/logger"
	"github.com/edubridge/progress-backend/internal/pkg/envutil"
)

type Config struct {
	JWTSecretKey string
	// WebhookServerKey gates the inbound webhook surface.
	WebhookServerKey string
	Port             string
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		JWTSecretKey:     envutil.String("JWT_SECRET_KEY", "defaultsecret"),
		WebhookServerKey: envutil.String("WEBHOOK_SERVER_KEY", ""),
		Port:             envutil.String("PORT", "8080"),
	}
	if cfg.WebhookServerKey == "" {
		log.Warn("WEBHOOK_SERVER_KEY is empty, webhook endpoints will reject all callers")
	}
	return cfg
}
