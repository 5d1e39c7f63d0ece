// Package api is a small REST client for the dashboard backend. livesync
// only needs the server listing, which seeds the record collection before
// the feed starts delivering deltas.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jsmonitor/livesync/internal/errors"
	"github.com/jsmonitor/livesync/pkg/status"
)

// DefaultTimeout bounds each request.
const DefaultTimeout = 10 * time.Second

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// Client talks to the REST API rooted at a base URL such as
// http://localhost:8080/api/v1.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListServers fetches every server record with its last known status.
func (c *Client) ListServers(ctx context.Context) (status.Collection, error) {
	var out status.Collection
	if err := c.get(ctx, "/servers", &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = status.Collection{}
	}
	return out, nil
}

// GetServer fetches one server record.
func (c *Client) GetServer(ctx context.Context, id int64) (status.Record, error) {
	var out status.Record
	err := c.get(ctx, "/servers/"+strconv.FormatInt(id, 10), &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.New("E400").WithDetailf("GET %s", url).Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.New("E400").
			WithDetailf("GET %s", url).
			WithSuggestion("Check that the dashboard API is reachable and --api-url is correct").
			Wrap(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request", "method", "GET", "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return errors.New("E400").WithDetailf("GET %s: reading body", url).Wrap(err)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.New("E401").
			WithDetailf("GET %s returned %d: %s", url, resp.StatusCode, snippet(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.New("E401").WithDetailf("GET %s: invalid JSON", url).Wrap(err)
	}
	return nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
