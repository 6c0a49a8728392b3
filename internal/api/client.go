// Package api is the HTTP client for the lets-todo REST API.
//
// The client holds no application state. Every request carries the session
// cookies from its cookie jar and a JSON content type; non-2xx responses are
// turned into *Error values carrying the status and a server-supplied message.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTimeout bounds a single request when the caller supplies no http.Client.
	DefaultTimeout = 15 * time.Second

	maxBodyBytes = 4 << 20
)

// Client calls the task and session endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	mu             sync.RWMutex
	onUnauthorized func()
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Its Jar decides how cookies are kept.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithJar keeps the default transport but stores cookies in jar.
func WithJar(jar http.CookieJar) Option {
	return func(c *Client) { c.http.Jar = jar }
}

// New creates a client for baseURL, e.g. "http://127.0.0.1:3000/api".
func New(baseURL string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: DefaultTimeout, Jar: jar},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized API base.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// OnUnauthorized registers fn to run whenever a response has status 401,
// except for login and register attempts.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

// credentialPaths answer 401 for bad credentials, which says nothing about
// the current session.
var credentialPaths = map[string]bool{
	"/login":    true,
	"/register": true,
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// do sends one request and returns the raw response body of a 2xx reply.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", method, "path", path, "err", err)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %w", ErrRequestFailed, method, path, err)
	}

	c.logger.Debug("request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(started),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newError(resp.StatusCode, data)
		if apiErr.Status == http.StatusUnauthorized && !credentialPaths[path] {
			c.unauthorized()
		}
		return nil, apiErr
	}
	return data, nil
}

func (c *Client) unauthorized() {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
