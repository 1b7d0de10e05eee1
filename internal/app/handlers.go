package app

import (
	"github.com/edubridge/progress-backend/internal/http/handlers"
	"github.com/edubridge/progress-backend/internal/logger"
)

type Handlers struct {
	Health   *handlers.HealthHandler
	Progress *handlers.ProgressHandler
	Webhook  *handlers.WebhookHandler
}

func wireHandlers(log *logger.Logger, serviceset Services, clients Clients) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   handlers.NewHealthHandler(),
		Progress: handlers.NewProgressHandler(log, serviceset.Progress),
		Webhook:  handlers.NewWebhookHandler(log, serviceset.Enrollment, clients.Catalog),
	}
}
