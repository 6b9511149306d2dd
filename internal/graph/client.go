package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/graphmirror/internal/logger"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const (
	defaultMaxRetries  = 5
	retryBaseDelay     = 1 * time.Second
	retryMaxDelay      = 2 * time.Minute
	defaultHTTPTimeout = 60 * time.Second
)

// TokenProvider supplies a bearer token for each request.
type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
}

// Client is an authenticated Microsoft Graph HTTP client with rate limiting
// and bounded retry of throttled requests.
type Client struct {
	httpClient *http.Client
	tokens     TokenProvider
	limiter    *RateLimiter
	baseURL    string
	maxRetries int
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the Graph endpoint. Used by tests.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithRateLimit overrides the rate limiter configuration.
func WithRateLimit(cfg RateLimitConfig) ClientOption {
	return func(c *Client) { c.limiter = NewRateLimiter(cfg) }
}

// WithMaxRetries bounds the number of attempts for throttled requests.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// NewClient creates a Graph client using the given token provider.
func NewClient(tokens TokenProvider, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		tokens:     tokens,
		limiter:    NewRateLimiter(DefaultRateLimit),
		baseURL:    DefaultBaseURL,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured Graph endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do performs an authenticated request. Throttled and transiently failing
// requests (429/503/504) are retried with exponential backoff, honouring any
// server-provided Retry-After and capped at retryMaxDelay; the wait is
// cancellable through ctx. All other non-2xx statuses are returned to the
// caller as typed errors with the response body consumed.
func (c *Client) Do(ctx context.Context, method, url string, body []byte) ([]byte, int, error) {
	var lastStatus int
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}

		respBody, status, retryAfter, err := c.doOnce(ctx, method, url, body)
		if err != nil {
			return nil, 0, err
		}
		if !IsRetryable(status) {
			return respBody, status, nil
		}
		lastStatus = status

		if status == http.StatusTooManyRequests {
			c.limiter.RecordRateLimitError(retryAfter)
		}

		delay := backoffDelay(attempt, retryAfter)
		logger.Info("graph: server is busy, retrying in %s", delay.Round(time.Second))
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastStatus, fmt.Errorf("graph: retries exhausted: status %d: %w",
		lastStatus, WrapError(lastStatus))
}

// doOnce performs a single attempt and returns the body, status, and any
// Retry-After hint in seconds.
func (c *Client) doOnce(ctx context.Context, method, url string, body []byte) ([]byte, int, int, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create request: %w", err)
	}

	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %w", ErrUnauthorised, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("read response: %w", err)
	}

	retryAfter := 0
	if v := resp.Header.Get("Retry-After"); v != "" {
		if n, perr := strconv.Atoi(v); perr == nil {
			retryAfter = n
		}
	}

	return respBody, resp.StatusCode, retryAfter, nil
}

// backoffDelay computes the wait before the next attempt: the server's
// Retry-After hint when present, otherwise exponential growth from
// retryBaseDelay, capped at retryMaxDelay.
func backoffDelay(attempt, retryAfterSeconds int) time.Duration {
	if retryAfterSeconds > 0 {
		d := time.Duration(retryAfterSeconds) * time.Second
		if d > retryMaxDelay {
			return retryMaxDelay
		}
		return d
	}
	d := retryBaseDelay * (1 << attempt)
	if d > retryMaxDelay {
		return retryMaxDelay
	}
	return d
}

// GetJSON performs a GET request and decodes the JSON response into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, status, err := c.Do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("graph: GET %s: status %d: %w", url, status, WrapError(status))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// DeltaPage is a single page of a delta query.
type DeltaPage struct {
	Items     []json.RawMessage
	NextLink  string
	DeltaLink string
}

// FetchDeltaPage fetches one page of a delta feed. A 410 Gone response is
// reported as ErrDeltaTokenExpired.
func (c *Client) FetchDeltaPage(ctx context.Context, url string) (*DeltaPage, error) {
	body, status, err := c.Do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("delta request: %w", err)
	}
	if IsDeltaTokenExpired(status) {
		return nil, ErrDeltaTokenExpired
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("delta request failed: status %d: %w",
			status, WrapError(status))
	}

	var resp struct {
		Value     []json.RawMessage `json:"value"`
		NextLink  string            `json:"@odata.nextLink"`
		DeltaLink string            `json:"@odata.deltaLink"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode delta response: %w", err)
	}

	return &DeltaPage{
		Items:     resp.Value,
		NextLink:  resp.NextLink,
		DeltaLink: resp.DeltaLink,
	}, nil
}

// Download fetches a raw (non-JSON) resource such as a message MIME body.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	body, status, err := c.Do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("download request: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("download failed: status %d: %w", status, WrapError(status))
	}
	return body, nil
}
