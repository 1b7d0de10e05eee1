package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/edubridge/progress-backend/internal/logger"
	"github.com/edubridge/progress-backend/internal/pkg/envutil"
	"github.com/edubridge/progress-backend/internal/pkg/httpx"
)

// RoleStudent is the only role allowed to own enrollments or progress.
const RoleStudent = "Student"

type UserProfile struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Client resolves user identity and role against the UMS profile API.
type Client interface {
	GetUserProfile(ctx context.Context, userID string) (*UserProfile, error)
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
		BaseURL:    envutil.String("UMS_BASE_URL", ""),
		ServerKey:  envutil.String("UMS_SERVER_KEY", ""),
		Timeout:    envutil.Duration("UMS_TIMEOUT", 0),
		MaxRetries: envutil.Int("UMS_MAX_RETRIES", 3),
	}}
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	httpClient, err := httpx.NewClient(log, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("identity client: %w", err)
	}
	return &client{log: log.With("client", "IdentityClient"), http: httpClient}, nil
}

func (c *client) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	var profile UserProfile
	err := c.http.GetJSON(ctx, "/api/v1/ums/profile?userId="+userID, &profile)
	if errors.Is(err, httpx.ErrNotFound) {
		c.log.Warn("no profile found for user", "user_id", userID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch profile for user %s: %w", userID, err)
	}
	return &profile, nil
}
