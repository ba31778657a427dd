// Package apiclient is the HTTP client for the Nexus Mods API (§6).
package apiclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	// DefaultBaseURL is the production Nexus Mods API v1 endpoint.
	DefaultBaseURL = "https://api.nexusmods.com/v1"

	maxRetries  = 5
	baseBackoff = 1 * time.Second
	maxBackoff  = 60 * time.Second
	jitterPct   = 25
)

// Client is an HTTP client for the Nexus Mods API. It handles request
// construction, apikey authentication, retry with exponential backoff, and
// rate-limit quota tracking.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger

	Quota *Quota
}

// NewClient creates a Nexus Mods API client. appName/appVersion compose the
// User-Agent header (§6: "<app_name> <version>").
func NewClient(baseURL, apiKey, appName, appVersion string, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		userAgent:  appName + " " + appVersion,
		httpClient: httpClient,
		logger:     logger,
		Quota:      NewQuota(),
	}
}

// do executes an authenticated GET against path with retry on transient
// network/5xx errors. The caller is responsible for closing the response
// body on success. 429 is never retried — it surfaces immediately so the
// caller observes Quota.Exhausted() (§7 RateLimited: "no automatic backoff
// in the core").
func (c *Client) do(ctx context.Context, path string) (*http.Response, error) {
	url := c.baseURL + path

	backoff, err := retry.NewExponential(baseBackoff)
	if err != nil {
		return nil, fmt.Errorf("apiclient: constructing backoff: %w", err)
	}

	backoff = retry.WithJitterPercent(jitterPct, backoff)
	backoff = retry.WithCappedDuration(maxBackoff, backoff)
	backoff = retry.WithMaxRetries(maxRetries, backoff)

	var resp *http.Response

	attempt := 0

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if reqErr != nil {
			return fmt.Errorf("apiclient: building request: %w", reqErr)
		}

		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		r, doErr := c.httpClient.Do(req)
		if doErr != nil {
			c.logger.Warn("request failed, retrying",
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.String("error", doErr.Error()),
			)

			return retry.RetryableError(fmt.Errorf("apiclient: %s: %w", path, doErr))
		}

		c.Quota.observe(r.Header)

		if r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices {
			resp = r

			return nil
		}

		body, _ := io.ReadAll(r.Body)
		r.Body.Close()

		apiErr := &APIError{StatusCode: r.StatusCode, Message: string(body), Err: classifyStatus(r.StatusCode)}

		if isRetryable(r.StatusCode) {
			c.logger.Warn("request returned retryable status",
				slog.String("path", path),
				slog.Int("status", r.StatusCode),
				slog.Int("attempt", attempt),
			)

			return retry.RetryableError(apiErr)
		}

		return apiErr
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("request succeeded",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Int64("hourly_remaining", c.Quota.HourlyRemaining()),
		slog.Int64("daily_remaining", c.Quota.DailyRemaining()),
	)

	return resp, nil
}
