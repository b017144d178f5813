// Package platform is the REST client for the streaming platform: viewer
// comments, AI responses, animations, the shared agent room, scene status,
// and audio uploads.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrUnexpectedStatus matches every non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrBaseURLNotSet is returned by NewClient without a base URL.
	ErrBaseURLNotSet = errors.New("platform base URL not set")
)

// StatusError describes a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s: %d %s", e.Method, e.Path, ErrUnexpectedStatus, e.Code, strings.TrimSpace(e.Body))
}

// Is lets errors.Is match ErrUnexpectedStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Opts holds configuration options for the platform client.
type Opts struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// Option defines a configuration option for the platform client.
type Option func(*Opts)

// WithBaseURL sets the server URL, e.g. https://stream.example.com.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithAPIKey sets the key sent in the api_key header.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client talks to the streaming platform.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a platform client.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrBaseURLNotSet
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid platform base URL: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	slog.Debug("platform.NewClient: client created", "base_url", base, "api_key_set", cfg.APIKey != "")
	return &Client{baseURL: base, apiKey: cfg.APIKey, http: hc}, nil
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("api_key", c.apiKey)
	}
	return req, nil
}

// doJSON sends an optional JSON body and decodes an optional JSON result.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s body: %w", method, path, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	req, err := c.newRequest(ctx, method, path, query, body, contentType)
	if err != nil {
		return err
	}
	return c.send(req, path, out)
}

func (c *Client) send(req *http.Request, path string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", req.Method, path, err)
	}
	slog.Debug("platform.Client.send: response", "method", req.Method, "path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: req.Method, Path: path, Code: resp.StatusCode, Body: string(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", req.Method, path, err)
	}
	return nil
}
