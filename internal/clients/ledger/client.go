package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/edubridge/progress-backend/internal/logger"
	"github.com/edubridge/progress-backend/internal/pkg/envutil"
	"github.com/edubridge/progress-backend/internal/pkg/httpx"
)

// Client pulls the authoritative enrollment state from the external
// enrollment/payment API.
type Client interface {
	// GetEnrolledCourseIDs returns the course ids the ledger currently
	// considers the user enrolled in. An empty list is a valid answer.
	GetEnrolledCourseIDs(ctx context.Context, userID string) ([]string, error)
}

type client struct {
	log  *logger.Logger
	http *httpx.Client
}

type Config struct {
	httpx.Config
}

func ConfigFromEnv() Config {
	return Config{Config: httpx.Config{
		BaseURL:    envutil.String("ENROLLMENT_API_BASE_URL", ""),
		ServerKey:  envutil.String("ENROLLMENT_API_SERVER_KEY", ""),
		Timeout:    envutil.Duration("ENROLLMENT_API_TIMEOUT", 0),
		MaxRetries: envutil.Int("ENROLLMENT_API_MAX_RETRIES", 3),
	}}
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	httpClient, err := httpx.NewClient(log, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("ledger client: %w", err)
	}
	return &client{log: log.With("client", "LedgerClient"), http: httpClient}, nil
}

func (c *client) GetEnrolledCourseIDs(ctx context.Context, userID string) ([]string, error) {
	var courseIDs []string
	err := c.http.GetJSON(ctx, "/payments/pay/enrollments/"+userID, &courseIDs)
	if errors.Is(err, httpx.ErrNotFound) {
		c.log.Warn("no ledger enrollments found for user", "user_id", userID)
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch ledger enrollments for user %s: %w", userID, err)
	}
	if courseIDs == nil {
		courseIDs = []string{}
	}
	return courseIDs, nil
}
