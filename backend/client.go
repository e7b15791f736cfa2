package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAPIKeyHeader is the header the backend expects API keys in.
const DefaultAPIKeyHeader = "X-N8N-API-KEY"

// Client is the subset of the backend REST API the auth layer consumes.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods must honor cancellation/deadlines.
// - Errors: error text must never include the API key.
type Client interface {
	// Validate performs one low-cost read (first page of workflows) to
	// verify the credential is accepted by the backend.
	Validate(ctx context.Context) error

	// ListUsers probes the user-management endpoint. An error means the
	// credential lacks that capability, not that authentication failed.
	ListUsers(ctx context.Context) error

	// ListProjects probes the project endpoint, available on enterprise
	// deployments only.
	ListProjects(ctx context.Context) error
}

// ClientFactory builds a Client for a resolved credential pair.
type ClientFactory func(baseURL, apiKey string) Client

// Config configures the HTTP client.
type Config struct {
	// APIKeyHeader is the header name carrying the key.
	// Default: DefaultAPIKeyHeader.
	APIKeyHeader string

	// Timeout bounds each request. Default: 15 seconds.
	Timeout time.Duration

	// HTTPClient overrides the underlying client. If nil, a default
	// client with Timeout is used.
	HTTPClient *http.Client
}

// HTTPClient calls the backend's public REST API.
type HTTPClient struct {
	baseURL   string
	apiKey    string
	keyHeader string
	http      *http.Client
}

// NewHTTPClient creates a client for the given base URL and API key.
func NewHTTPClient(baseURL, apiKey string, cfg Config) *HTTPClient {
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = DefaultAPIKeyHeader
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		keyHeader: cfg.APIKeyHeader,
		http:      httpClient,
	}
}

// NewFactory returns a ClientFactory producing HTTP clients with cfg.
func NewFactory(cfg Config) ClientFactory {
	return func(baseURL, apiKey string) Client {
		return NewHTTPClient(baseURL, apiKey, cfg)
	}
}

// Validate fetches the first page of workflows.
func (c *HTTPClient) Validate(ctx context.Context) error {
	return c.get(ctx, "/api/v1/workflows", url.Values{"limit": {"1"}})
}

// ListUsers fetches the user listing.
func (c *HTTPClient) ListUsers(ctx context.Context) error {
	return c.get(ctx, "/api/v1/users", nil)
}

// ListProjects fetches the project listing.
func (c *HTTPClient) ListProjects(ctx context.Context) error {
	return c.get(ctx, "/api/v1/projects", nil)
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("backend: create request: %w", err)
	}
	req.Header.Set(c.keyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend: %s: %s", path, responseError(resp))
	}
	return nil
}

// responseError extracts a human-readable error from a failed response.
// Falls back to the HTTP status when the body is not a JSON error.
func responseError(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(body) > 0 {
		var payload struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
			return fmt.Sprintf("%s (status %d)", payload.Message, resp.StatusCode)
		}
	}
	return fmt.Sprintf("status %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)
