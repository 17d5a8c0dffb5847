// Package registry provides the HTTP client for the model registry API.
//
// Two API families share one transport: the /v1 package API (auth, listing, detail,
// ingest, rating) and the artifact API (query, model rating, lineage, cost, license).
package registry

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
)

const (
	// DefaultBaseURL is the registry address used when none is configured
	DefaultBaseURL = "http://localhost:8000"

	// DefaultUserAgent is the default User-Agent header
	DefaultUserAgent = "modelreg/1.0"

	// maxErrorBody caps how much of an error response is kept for detail extraction
	maxErrorBody = 1 << 20
)

// HTTPClient defines the interface for HTTP operations
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource supplies the bearer token attached to each request. An empty token means
// the request is sent unauthenticated.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

// Token implements TokenSource.
func (s StaticToken) Token() string { return string(s) }

// Config holds configuration for the registry client
type Config struct {
	BaseURL   string
	UserAgent string
	// Timeout bounds a whole request. Zero means no client-side timeout; cancel the
	// context to abandon a call.
	Timeout    time.Duration
	HTTPClient HTTPClient
	Logger     *slog.Logger
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		UserAgent:  DefaultUserAgent,
		HTTPClient: &http.Client{},
	}
}

// Client talks to the registry. It is safe for concurrent use.
type Client struct {
	config Config
	tokens TokenSource
	logger *slog.Logger
}

// NewClient creates a registry client. tokens may be nil for an unauthenticated client.
func NewClient(config Config, tokens TokenSource) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: config.Timeout}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	return &Client{config: config, tokens: tokens, logger: logger}
}

// BaseURL returns the configured registry address.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Do sends a JSON request and decodes a JSON response into out. body and out may be nil.
func (c *Client) Do(ctx context.Context, method string, segments []string, query url.Values, body, out any) error {
	data, reqURL, err := c.roundTrip(ctx, method, segments, query, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &DecodeError{URL: reqURL, Err: io.ErrUnexpectedEOF}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{URL: reqURL, Err: err}
	}
	return nil
}

// DoText sends a request and returns the response body as text, for endpoints that do
// not answer with a JSON object.
func (c *Client) DoText(ctx context.Context, method string, segments []string, query url.Values, body any) (string, error) {
	data, _, err := c.roundTrip(ctx, method, segments, query, body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DoRaw sends a request and returns the raw response body.
func (c *Client) DoRaw(ctx context.Context, method string, segments []string, query url.Values, body any) ([]byte, error) {
	data, _, err := c.roundTrip(ctx, method, segments, query, body)
	return data, err
}

// escapeSegments escapes each path segment so it stays a single segment after joining.
// Empty, "." and ".." segments are rejected since path cleaning would drop or climb them.
func escapeSegments(segments []string) ([]string, error) {
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		switch seg {
		case "", ".", "..":
			return nil, fmt.Errorf("%w: %q", ErrInvalidPathSegment, seg)
		}
		escaped[i] = url.PathEscape(seg)
	}
	return escaped, nil
}

func (c *Client) roundTrip(ctx context.Context, method string, segments []string, query url.Values, body any) ([]byte, string, error) {
	escaped, err := escapeSegments(segments)
	if err != nil {
		return nil, "", err
	}
	apiURL, err := url.JoinPath(c.config.BaseURL, escaped...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to construct API URL: %w", err)
	}
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, apiURL, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return nil, apiURL, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		c.logger.Debug("registry request failed",
			"method", method, "url", apiURL, "request_id", requestID, "error", err)
		return nil, apiURL, &NetworkError{Method: method, URL: apiURL, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	c.logger.Debug("registry request",
		"method", method,
		"url", apiURL,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, apiURL, &HTTPError{
			Method:     method,
			URL:        apiURL,
			StatusCode: resp.StatusCode,
			Detail:     extractDetail(raw, resp.StatusCode),
			Body:       raw,
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apiURL, &NetworkError{Method: method, URL: apiURL, Err: err}
	}
	return data, apiURL, nil
}

// extractDetail pulls the human-readable message out of an error body. FastAPI answers
// either {"detail": "text"} or {"detail": [{"msg": "..."}]} for validation failures.
func extractDetail(raw []byte, status int) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Detail) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Detail, &s); err == nil && s != "" {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}
