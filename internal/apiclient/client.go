// Package apiclient is the HTTP client for the DICER REST backend. Every
// response passes through the client's interceptor list.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/me/dicer/internal/metrics"
	"github.com/me/dicer/internal/session"
)

// Client talks to the backend API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	ics        interceptors
}

// New creates a client for the API rooted at baseURL (".../api") with
// connection pooling and a per-request timeout.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger.With("component", "apiclient"),
	}
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Use appends an interceptor and returns a function that removes it. The
// remove function may be called more than once.
func (c *Client) Use(ic ResponseInterceptor) (remove func()) {
	return c.ics.add(ic)
}

// Interceptors returns the number of registered interceptors.
func (c *Client) Interceptors() int {
	return c.ics.len()
}

// request describes one backend call.
type request struct {
	method string
	route  string // template used for logs and metrics
	path   string // concrete path under baseURL, including any query
	url    string // absolute URL, overrides baseURL+path
	body   any
	auth   bool // attach the session token
}

// do performs the call, runs the interceptors and decodes a 2xx body into
// out (if non-nil). Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, r request, out any) error {
	var bodyReader io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	target := c.baseURL + r.path
	if r.url != "" {
		target = r.url
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	authenticated := false
	if r.auth {
		if token := tokenFrom(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
			authenticated = true
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveBackend(r.method, r.route, 0, time.Since(start))
		return fmt.Errorf("%s %s: %w", r.method, r.route, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	metrics.ObserveBackend(r.method, r.route, resp.StatusCode, time.Since(start))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("backend response",
		"method", r.method,
		"route", r.route,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if err := c.ics.run(ctx, &Response{
		Method:        r.method,
		Route:         r.route,
		StatusCode:    resp.StatusCode,
		Header:        resp.Header,
		Body:          respBody,
		Authenticated: authenticated,
	}); err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Detail: extractDetail(respBody)}
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse %s response (status %d): %w", r.route, resp.StatusCode, err)
	}
	return nil
}

// tokenFrom returns the bearer token of the request-scope session, if any.
func tokenFrom(ctx context.Context) string {
	if s := session.FromContext(ctx); s != nil {
		return s.Token()
	}
	return ""
}

// envelope decodes list responses that arrive either bare ({"users": [...]})
// or wrapped ({"data": {"devices": [...]}}).
type envelope map[string]json.RawMessage

// field returns the first of keys present at the top level or under "data".
func (e envelope) field(keys ...string) (json.RawMessage, bool) {
	var inner envelope
	if raw, ok := e["data"]; ok {
		_ = json.Unmarshal(raw, &inner)
	}
	for _, k := range keys {
		if v, ok := inner[k]; ok {
			return v, true
		}
		if v, ok := e[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// decodeList extracts a list stored under one of keys. A bare JSON array
// body, or an array directly under "data", is accepted too.
func decodeList[T any](body envelope, raw []byte, keys ...string) ([]T, error) {
	var items []T
	if v, ok := body.field(keys...); ok {
		if err := json.Unmarshal(v, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	if v, ok := body["data"]; ok {
		if err := json.Unmarshal(v, &items); err == nil {
			return items, nil
		}
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}
	return []T{}, nil
}

// getList fetches route and decodes the list found under keys.
func getList[T any](ctx context.Context, c *Client, route string, keys ...string) ([]T, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, route: route, path: route, auth: true}, &raw); err != nil {
		return nil, err
	}
	var env envelope
	_ = json.Unmarshal(raw, &env)
	items, err := decodeList[T](env, raw, keys...)
	if err != nil {
		return nil, fmt.Errorf("parse %s response: %w", route, err)
	}
	return items, nil
}
