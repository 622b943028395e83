package chatwoot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

const (
	// authHeader carries the account API token.
	authHeader = "api_access_token"

	// DefaultTimeout bounds one HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond is the client-side throttle when the config
	// does not set one.
	DefaultRequestsPerSecond = 5.0
)

// Client is a thin authenticated HTTP client for one Chatwoot account.
type Client struct {
	baseURL   string
	accountID string
	token     string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a Chatwoot API client from source configuration.
func NewClient(cfg domain.SourceConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		accountID: cfg.AccountID,
		token:     cfg.APIKey,
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// GetJSON performs an authenticated GET of an account-scoped path and
// decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + "/api/v1/accounts/" + url.PathEscape(c.accountID) + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: chatwoot: build request: %w", domain.ErrConnection, err)
	}
	req.Header.Set(authHeader, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: chatwoot: %w", domain.ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: chatwoot: read response: %w", domain.ErrConnection, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: chatwoot %s", domain.ErrRateLimited, path)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: chatwoot %s: authentication rejected", domain.ErrConnection, path)
	default:
		return fmt.Errorf("%w: chatwoot %s: status %d", domain.ErrConnection, path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: chatwoot %s: decode response: %w", domain.ErrConnection, path, err)
	}
	return nil
}

// unixTime converts a Chatwoot Unix-seconds timestamp. Zero in, zero out.
func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
