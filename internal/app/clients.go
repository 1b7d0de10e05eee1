package app

import (
	"fmt"

	"github.com/edubridge/progress-backend/internal/cache"
	"github.com/edubridge/progress-backend/internal/clients/catalog"
	"github.com/edubridge/progress-backend/internal/clients/identity"
	"github.com/edubridge/progress-backend/internal/clients/ledger"
	"github.com/edubridge/progress-backend/internal/logger"
)

type Clients struct {
	Cache    cache.Cache
	Catalog  catalog.Client
	Identity identity.Client
	Ledger   ledger.Client
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	c, err := cache.NewRedis(log)
	if err != nil {
		log.Warn("redis unavailable, using in-process cache", "error", err)
		c = cache.NewMemory()
	}

	catalogClient, err := catalog.New(log, catalog.ConfigFromEnv(), c)
	if err != nil {
		return Clients{}, fmt.Errorf("init catalog client: %w", err)
	}

	identityClient, err := identity.New(log, identity.ConfigFromEnv())
	if err != nil {
		return Clients{}, fmt.Errorf("init identity client: %w", err)
	}

	ledgerClient, err := ledger.New(log, ledger.ConfigFromEnv())
	if err != nil {
		return Clients{}, fmt.Errorf("init ledger client: %w", err)
	}

	return Clients{
		Cache:    c,
		Catalog:  catalogClient,
		Identity: identityClient,
		Ledger:   ledgerClient,
	}, nil
}
