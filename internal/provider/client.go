package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/retry"
)

const (
	maxErrorBodyBytes = 64 * 1024

	defaultTimeout = 60 * time.Second
)

// Client is the HTTP client shared by the raw vendor adapters. It applies
// the uniform retry policy to request opening and classifies non-2xx
// responses into domain errors. Streaming responses are returned with the
// body open; the stall watchdog, not a total timeout, bounds their
// lifetime.
type Client struct {
	httpc   *http.Client
	name    string
	timeout time.Duration
	policy  retry.Policy
}

// NewClient creates a vendor HTTP client. The timeout bounds non-streaming
// calls and header waits; it does not cap an open stream.
func NewClient(name string, timeout time.Duration, policy retry.Policy) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		name:    name,
		timeout: timeout,
		policy:  policy,
		httpc: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:          32,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: timeout,
			},
		},
	}
}

// BuildRequestFunc constructs a fresh request for one attempt. It is called
// again on every retry so the body can be re-serialized.
type BuildRequestFunc func(ctx context.Context) (*http.Request, error)

// Stream opens a streaming request, retrying transient pre-stream
// failures. On success the response body is open and the caller owns it.
func (c *Client) Stream(ctx context.Context, build BuildRequestFunc) (*http.Response, error) {
	return retry.Do(ctx, c.policy, func() (*http.Response, error) {
		return c.attempt(ctx, build)
	})
}

// Request performs a bounded non-streaming request and returns the
// response body.
func (c *Client) Request(ctx context.Context, build BuildRequestFunc) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := retry.Do(ctx, c.policy, func() (*http.Response, error) {
		return c.attempt(ctx, build)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeProvider, c.name,
			fmt.Errorf("failed to read response body: %w", err))
	}
	return body, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpc.CloseIdleConnections()
}

func (c *Client) attempt(ctx context.Context, build BuildRequestFunc) (*http.Response, error) {
	req, err := build(ctx)
	if err != nil {
		// Building a request is deterministic, so retrying cannot help.
		return nil, domain.WrapError(domain.ErrCodeValidation, c.name,
			fmt.Errorf("failed to build request: %w", err))
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		// Wraps the context error when the caller cancelled, which the
		// retry policy treats as permanent.
		return nil, domain.WrapError(domain.ErrCodeUnavailable, c.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		resp.Body.Close()

		httpErr := domain.HTTPError(c.name, resp.StatusCode, body)
		httpErr.RetryAfter = retryAfterHint(resp.Header)
		return nil, httpErr
	}

	return resp, nil
}

// retryAfterHint parses a Retry-After header as delay seconds or an HTTP
// date, zero when absent or malformed.
func retryAfterHint(header http.Header) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	return 0
}
