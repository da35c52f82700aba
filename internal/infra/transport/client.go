package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/yanqian/sunbalance/pkg/metrics"
)

const (
	defaultBaseURL = "http://localhost:8000/api"
	maxBodyBytes   = 4 << 20
	maxErrorBytes  = 64 << 10
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond <= 0 disables client side throttling.
	RequestsPerSecond int
	Burst             int
	// Base overrides the underlying round tripper; nil uses http.DefaultTransport.
	Base    http.RoundTripper
	Metrics *metrics.Recorder
}

// Response is a fully read API response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return fmt.Errorf("decode response: empty body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client performs JSON requests against the SunBalance API, attaching the bearer credential
// held by the shared Bearer whenever one is installed. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	bearer     *Bearer
	limiter    *rate.Limiter
	metrics    *metrics.Recorder
	logger     *slog.Logger
}

// NewClient builds an API client.
func NewClient(opts Options, bearer *Bearer, logger *slog.Logger) *Client {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rt := opts.Base
	if rt == nil {
		rt = http.DefaultTransport
	}
	if bearer == nil {
		bearer = NewBearer()
	}
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(rt),
		},
		bearer:  bearer,
		limiter: limiter,
		metrics: opts.Metrics,
		logger:  logger.With("component", "transport.client"),
	}
}

// Bearer returns the credential holder used by this client.
func (c *Client) Bearer() *Bearer {
	return c.bearer
}

// Request sends one API call. body, when non-nil, is JSON encoded. Any non-2xx status or
// network failure is returned as *Error.
func (c *Client) Request(ctx context.Context, method, path string, body any, query url.Values) (*Response, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Method: method, Path: path, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &Error{Method: method, Path: path, Err: fmt.Errorf("build request: %w", err)}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.bearer.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Method: method, Path: path, Err: fmt.Errorf("rate limit: %w", err)}
		}
	}

	route := routeLabel(path)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(method, route, 0, time.Since(start))
		c.logger.Warn("api request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return nil, &Error{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(method, route, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		apiErr := newStatusError(method, path, resp.StatusCode, payload)
		c.logger.Warn("api request rejected", "method", method, "path", path, "status", resp.StatusCode, "request_id", requestID)
		return nil, apiErr
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Method: method, Path: path, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "request_id", requestID, "latency_ms", time.Since(start).Milliseconds())
	return &Response{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: payload}, nil
}

// routeLabel collapses numeric path segments so metric label cardinality stays bounded.
func routeLabel(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if strings.Trim(part, "0123456789") == "" {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

// Get issues a GET with optional query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Request(ctx, http.MethodGet, path, nil, query)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Request(ctx, http.MethodPost, path, body, nil)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.Request(ctx, http.MethodPatch, path, body, nil)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Request(ctx, http.MethodDelete, path, nil, nil)
}

// DecodeJSON decodes resp into a new T.
func DecodeJSON[T any](resp *Response) (T, error) {
	var out T
	if resp == nil {
		return out, fmt.Errorf("decode response: nil response")
	}
	err := resp.Decode(&out)
	return out, err
}
