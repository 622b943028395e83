package splynx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

const (
	// apiBasePath is the current Splynx API root.
	apiBasePath = "/api/2.0/admin"

	// legacyBasePath is the pre-2.0 API root kept alive by Splynx. Some
	// instances rate-limit the two roots independently, so a 403/405/429
	// on the current path is retried here once.
	legacyBasePath = "/api/1.0/admin"

	// DefaultTimeout bounds one HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond is the client-side throttle when the config
	// does not set one. Splynx instances are often small self-hosted
	// boxes, so the default is conservative.
	DefaultRequestsPerSecond = 2.0
)

// Client is a thin authenticated HTTP client for one Splynx instance.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  oauth2.TokenSource
	limiter *rate.Limiter
}

// NewClient creates a Splynx API client from source configuration.
func NewClient(cfg domain.SourceConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}

	hc := &http.Client{Timeout: timeout}
	base := strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		baseURL: base,
		http:    hc,
		tokens:  newTokenSource(context.Background(), hc, base, cfg.APIKey, cfg.APISecret),
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// GetJSON performs an authenticated GET of path (relative to the API
// root) and decodes the response body into out. Rate-limit responses on
// the current API root fall back to the legacy root once; every other
// failure maps onto the domain connection errors so the breaker and the
// run log see a uniform shape.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("%w: splynx token exchange: %w", domain.ErrConnection, err)
	}

	status, body, err := c.do(ctx, c.baseURL+apiBasePath+path, query, token.AccessToken)
	if err != nil {
		return fmt.Errorf("%w: splynx: %w", domain.ErrConnection, err)
	}

	if rateLimited(status) {
		status, body, err = c.do(ctx, c.baseURL+legacyBasePath+path, query, token.AccessToken)
		if err != nil {
			return fmt.Errorf("%w: splynx legacy fallback: %w", domain.ErrConnection, err)
		}
		if rateLimited(status) {
			return fmt.Errorf("%w: splynx %s: status %d on both API roots", domain.ErrRateLimited, path, status)
		}
	}

	if status == http.StatusUnauthorized {
		return fmt.Errorf("%w: splynx %s: authentication rejected", domain.ErrConnection, path)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: splynx %s: status %d", domain.ErrConnection, path, status)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: splynx %s: decode response: %w", domain.ErrConnection, path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, rawURL string, query url.Values, token string) (int, []byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, nil, fmt.Errorf("parse url: %w", err)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Splynx-EA (access_token="+token+")")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// rateLimited reports whether the status is one of the shapes Splynx
// returns when throttling (it answers 403 or 405 instead of 429 on some
// versions).
func rateLimited(status int) bool {
	switch status {
	case http.StatusForbidden, http.StatusMethodNotAllowed, http.StatusTooManyRequests:
		return true
	}
	return false
}
