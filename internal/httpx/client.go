// Package httpx provides the HTTP client used for page scraping, with retry
// logic, Retry-After handling, and a pooled transport.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"vibeflow/internal/retry"
)

// Config holds HTTP client configuration.
type Config struct {
	// Timeout for individual HTTP requests.
	Timeout time.Duration

	// Retry configuration.
	Retry retry.Config

	// UserAgent for HTTP requests.
	UserAgent string

	// MaxBodySize caps response bodies; 0 means no cap.
	MaxBodySize int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		Retry:       retry.DefaultConfig(),
		UserAgent:   "vibeflow/1.0",
		MaxBodySize: 10 << 20, // pages, not media
	}
}

// Client wraps an HTTP client with retry and rate limit handling.
type Client struct {
	base   *http.Client
	config *Config
}

// New creates a client with a pooled transport.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		base: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config: cfg,
	}
}

// Response is an HTTP response with the body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Get performs a GET request with retry logic.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil, nil)
}

// Do performs an HTTP request with retry logic. 429, 403, and 503 responses
// become RateLimitError carrying any Retry-After value; other non-2xx
// responses become HTTPError.
func (c *Client) Do(ctx context.Context, method, urlStr string, body io.Reader, headers map[string]string) (*Response, error) {
	var out *Response

	err := retry.Do(ctx, c.config.Retry, isRetryableHTTPError, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
		if err != nil {
			return err
		}

		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", c.config.UserAgent)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.base.Do(req)
		if err != nil {
			return fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		// Rate limiting (429, 503) or anti-bot protection (403).
		if resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode == http.StatusServiceUnavailable ||
			resp.StatusCode == http.StatusForbidden {
			return &RateLimitError{
				StatusCode:     resp.StatusCode,
				RetryAfter:     parseRetryAfter(resp.Header),
				IsBotDetection: resp.StatusCode == http.StatusForbidden,
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &HTTPError{
				StatusCode: resp.StatusCode,
				Body:       bodyBytes,
			}
		}

		reader := io.Reader(resp.Body)
		if c.config.MaxBodySize > 0 {
			reader = io.LimitReader(resp.Body, c.config.MaxBodySize)
		}
		respBody, err := io.ReadAll(reader)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}

		out = &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       respBody,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// parseRetryAfter reads the Retry-After header as seconds or an HTTP date.
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// isRetryableHTTPError determines if an HTTP error is retryable.
func isRetryableHTTPError(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		// Server errors are transient; client errors are not.
		return httpErr.StatusCode >= 500
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		// Bot detection will not clear within a retry window.
		return !rateLimitErr.IsBotDetection
	}

	// Network-level failures default to retryable.
	return true
}
