// Package backend is the HTTP client for the pipeline store service.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ravi-parthasarathy/pipegen/pkg/catalog"
	"github.com/ravi-parthasarathy/pipegen/pkg/compose"
	"github.com/ravi-parthasarathy/pipegen/pkg/flow"
)

const defaultTimeout = 30 * time.Second

// maxErrorBody bounds how much of a failed response is kept in a StatusError.
const maxErrorBody = 4 << 10

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := e.Body
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal([]byte(e.Body), &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, strings.TrimSpace(msg))
}

// Platform is a CI/CD target the store holds fragments for.
type Platform struct {
	ID   string `json:"_id,omitempty"`
	Name string `json:"name"`
}

// GenerateRequest is the body of the server-side generation call.
type GenerateRequest struct {
	Nodes    []flow.Node `json:"nodes"`
	Platform string      `json:"platform"`
	Language string      `json:"language"`
}

// GenerateResponse carries the server-composed document.
type GenerateResponse struct {
	YAML     string `json:"yaml"`
	Resolved int    `json:"resolved"`
	Total    int    `json:"total"`
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends an Authorization: Bearer header on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request transport timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithLookupRate limits pipeline searches to rps per second. Zero or less
// means unlimited.
func WithLookupRate(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client talks to the store service. It satisfies catalog.Source and
// compose.Resolver.
type Client struct {
	base    *url.URL
	token   string
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

var (
	_ catalog.Source   = (*Client)(nil)
	_ compose.Resolver = (*Client)(nil)
)

// New returns a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:    u,
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(rate.Inf, 0),
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.Named("backend")
	return c, nil
}

// ListTools fetches the whole tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]catalog.Tool, error) {
	var out struct {
		Tools []catalog.Tool `json:"tools"`
	}
	if err := c.do(ctx, http.MethodGet, "/tools", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

// ListPlatforms fetches the known CI/CD platforms.
func (c *Client) ListPlatforms(ctx context.Context) ([]Platform, error) {
	var out struct {
		Platforms []Platform `json:"platforms"`
	}
	if err := c.do(ctx, http.MethodGet, "/platforms", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Platforms, nil
}

// SearchPipelines looks up stored fragments for one tool. Calls wait on the
// lookup rate limiter first.
func (c *Client) SearchPipelines(ctx context.Context, q compose.Query) ([]compose.Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("lookup rate limit: %w", err)
	}
	params := url.Values{}
	params.Set("tool", q.Tool)
	params.Set("platform", q.Platform)
	params.Set("stage", string(q.Stage))
	params.Set("language", q.Language)

	var out struct {
		Pipelines []compose.Record `json:"pipelines"`
	}
	if err := c.do(ctx, http.MethodGet, "/pipelines/search", params, nil, &out); err != nil {
		return nil, err
	}
	return out.Pipelines, nil
}

// Generate asks the service to compose the document itself.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var out GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/pipelines/generate", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePipeline stores a fragment.
func (c *Client) CreatePipeline(ctx context.Context, r compose.Record) (*compose.Record, error) {
	var out compose.Record
	if err := c.do(ctx, http.MethodPost, "/pipelines", nil, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.log.Debug("request done",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
