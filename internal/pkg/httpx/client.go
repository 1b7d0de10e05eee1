package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/edubridge/progress-backend/internal/logger"
)

// ErrNotFound signals an upstream 404. Callers decide whether absence is
// fatal; it never triggers a retry.
var ErrNotFound = errors.New("upstream resource not found")

// maxRetryAfter caps how long an upstream Retry-After header can make us
// wait between attempts.
const maxRetryAfter = 30 * time.Second

type Config struct {
	BaseURL    string
	ServerKey  string
	Timeout    time.Duration
	MaxRetries int
}

// Client is a thin JSON GET client shared by the catalog, identity and
// ledger collaborators: one base URL, one X-Server-Key header, bounded
// retry with exponential backoff for idempotent reads only.
type Client struct {
	httpClient *http.Client
	baseURL    string
	serverKey  string
	maxRetries int
	log        *logger.Logger
}

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("base url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		serverKey:  cfg.ServerKey,
		maxRetries: retries,
		log:        log,
	}, nil
}

// GetJSON issues a GET for path and decodes the body into out.
// 404 maps to ErrNotFound; retryable statuses and transport errors are
// retried up to MaxRetries with backoff+jitter, honoring Retry-After.
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries+1; attempt++ {
		if attempt > 1 {
			sleep := JitterSleep(Backoff(500*time.Millisecond, attempt-1))
			var se *StatusError
			if errors.As(lastErr, &se) && se.RetryAfter > 0 {
				sleep = se.RetryAfter
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
		}

		err := c.getOnce(ctx, url, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) || !IsRetryableError(err) {
			return err
		}
		c.log.Warn("retryable upstream failure", "url", url, "attempt", attempt, "error", err)
		lastErr = err
	}
	return lastErr
}

func (c *Client) getOnce(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.serverKey != "" {
		req.Header.Set("X-Server-Key", c.serverKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{
			Status:     resp.StatusCode,
			URL:        url,
			RetryAfter: RetryAfterDuration(resp, 0, maxRetryAfter),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
