package erpnext

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

const (
	// resourcePath is the Frappe list/document API root.
	resourcePath = "/api/resource/"

	// pingMethod is a cheap authenticated call used by TestConnection.
	pingMethod = "/api/method/frappe.auth.get_logged_user"

	// modifiedLayout is how Frappe serializes the modified timestamp.
	// Fractional seconds appear on most instances.
	modifiedLayout = "2006-01-02 15:04:05.000000"

	// DefaultTimeout bounds one HTTP request.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond is the client-side throttle when the config
	// does not set one.
	DefaultRequestsPerSecond = 5.0
)

// Client is a thin authenticated HTTP client for the Frappe REST API.
type Client struct {
	baseURL string
	auth    string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an ERPNext API client from source configuration.
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
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		auth:    "token " + cfg.APIKey + ":" + cfg.APISecret,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// listResponse is the Frappe list API envelope.
type listResponse struct {
	Data []json.RawMessage `json:"data"`
}

// List fetches one page of a doctype's documents, ordered by modified
// ascending. A non-zero ModifiedSince becomes a server-side filter, so
// incremental runs only transfer changed documents.
func (c *Client) List(ctx context.Context, doctype string, fields []string, req driven.PageRequest) ([]json.RawMessage, error) {
	q := url.Values{}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	q.Set("fields", string(fieldsJSON))
	q.Set("order_by", "modified asc")
	q.Set("limit_start", strconv.Itoa((req.Page-1)*req.Size))
	q.Set("limit_page_length", strconv.Itoa(req.Size))

	if !req.ModifiedSince.IsZero() {
		filters, err := json.Marshal([][]string{
			{"modified", ">", req.ModifiedSince.Format(modifiedLayout)},
		})
		if err != nil {
			return nil, fmt.Errorf("encode filters: %w", err)
		}
		q.Set("filters", string(filters))
	}

	body, err := c.get(ctx, resourcePath+url.PathEscape(doctype), q)
	if err != nil {
		return nil, err
	}

	var lr listResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return nil, fmt.Errorf("%w: erpnext %s: decode response: %w", domain.ErrConnection, doctype, err)
	}
	return lr.Data, nil
}

// Ping performs a cheap authenticated call.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.get(ctx, pingMethod, nil)
	return err
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: erpnext: build request: %w", domain.ErrConnection, err)
	}
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: erpnext: %w", domain.ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: erpnext: read response: %w", domain.ErrConnection, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		// No alternate endpoint here; the breaker absorbs sustained
		// throttling.
		return nil, fmt.Errorf("%w: erpnext %s", domain.ErrRateLimited, path)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: erpnext %s: authentication rejected", domain.ErrConnection, path)
	default:
		return nil, fmt.Errorf("%w: erpnext %s: status %d", domain.ErrConnection, path, resp.StatusCode)
	}
}

// parseModified parses a Frappe modified timestamp, with or without
// fractional seconds. Zero time on empty or unparseable input.
func parseModified(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{modifiedLayout, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
