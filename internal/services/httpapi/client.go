// Package httpapi is the shared HTTP plumbing of every upstream client:
// bounded timeouts, request pacing, retries of transient failures and metrics.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/amaumene/storarr/internal/metrics"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrNotConfigured is returned by clients whose base URL is empty
var ErrNotConfigured = errors.New("service not configured")

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       string
	Header     http.Header
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Options configures a Client
type Options struct {
	Name              string // metrics and log label
	BaseURL           string
	Headers           map[string]string
	Username          string // basic auth, optional
	Password          string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	Cookies           bool // keep a cookie jar across requests
}

// Client performs JSON requests against one upstream service
type Client struct {
	name       string
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	logger     zerolog.Logger

	mu      sync.RWMutex
	headers map[string]string
}

// New creates a Client
func New(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if opts.Cookies {
		jar, _ := cookiejar.New(nil)
		httpClient.Jar = jar
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &Client{
		name:       opts.Name,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		username:   opts.Username,
		password:   opts.Password,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: opts.MaxRetries,
		logger:     logger.With().Str("service", opts.Name).Logger(),
		headers:    headers,
	}
}

// Configured reports whether the client has somewhere to send requests
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetHeader sets a header sent with every subsequent request
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

// Get performs a GET request and decodes the JSON response into result
func (c *Client) Get(ctx context.Context, path string, query url.Values, result interface{}) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, result)
}

// Post performs a POST request
func (c *Client) Post(ctx context.Context, path string, body, result interface{}) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, result)
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, path string, query url.Values) error {
	return c.Do(ctx, http.MethodDelete, path, query, nil, nil)
}

// Do performs a request. body may be nil, url.Values (form encoded) or any
// JSON-marshalable value. result may be nil, *string (raw body) or a JSON target.
// Transport errors and 5xx responses are retried; 4xx responses are not.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, result interface{}) error {
	if !c.Configured() {
		return fmt.Errorf("%s: %w", c.name, ErrNotConfigured)
	}

	fullURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	payload, contentType, err := encodeBody(body)
	if err != nil {
		return err
	}

	attempt := func() error {
		return c.once(ctx, method, fullURL, payload, contentType, result)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Dur("retry_in", wait).Msg("Retrying request")
	}
	return backoff.RetryNotify(attempt, retry, notify)
}

func (c *Client) once(ctx context.Context, method, fullURL string, payload []byte, contentType string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return backoff.Permanent(err)
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	c.mu.RLock()
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	c.mu.RUnlock()
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.UpstreamLatency.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(c.name, "error").Inc()
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	metrics.UpstreamRequests.WithLabelValues(c.name, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(bodyBytes)), Header: resp.Header}
		if resp.StatusCode >= 500 {
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	switch r := result.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
	case *string:
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		*r = string(raw)
	default:
		if resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
	}
	return nil
}

func encodeBody(body interface{}) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case url.Values:
		return []byte(b.Encode()), "application/x-www-form-urlencoded", nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		return data, "application/json", nil
	}
}
