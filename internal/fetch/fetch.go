// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// =============================================================================
// CLIENT
// =============================================================================

// Options configures a fetch Client.
type Options struct {
	// Retries is the number of retries after the initial attempt.
	Retries int
	// RetryDelay is the base backoff delay, doubled per failed attempt.
	RetryDelay time.Duration
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// Logger receives retry warnings. Nil disables logging.
	Logger *slog.Logger
}

// Client performs timeout-guarded JSON fetches with bounded retry and
// exponential backoff. The zero retry count means one attempt total.
//
// Client is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	retries    int
	retryDelay time.Duration
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates a fetch client. Zero option values fall back to conservative
// defaults (2 retries, 450ms base delay, 4s timeout).
func New(opts Options) *Client {
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 450 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 4 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		// No client-level timeout; each attempt gets its own context
		// deadline so streaming callers can reuse the transport.
		httpClient: &http.Client{},
		retries:    opts.Retries,
		retryDelay: opts.RetryDelay,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
	}
}

// =============================================================================
// JSON FETCH WITH RETRY
// =============================================================================

// GetJSON fetches url and decodes the 2xx response body into out, retrying
// transient failures with exponential backoff. A non-2xx status counts as a
// retryable failure, matching list-endpoint semantics.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	return c.retryJSON(ctx, http.MethodGet, url, nil, out, c.retries)
}

// GetJSONOnce is GetJSON without retries. Used where a fallback path exists
// and retry latency is not worth paying.
func (c *Client) GetJSONOnce(ctx context.Context, url string, out any) error {
	return c.retryJSON(ctx, http.MethodGet, url, nil, out, 0)
}

// PostJSON sends body as JSON and decodes the 2xx response into out, with
// the same retry policy as GetJSON.
func (c *Client) PostJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &Error{Kind: KindInvalid, Message: "failed to marshal request", Cause: err}
	}
	return c.retryJSON(ctx, http.MethodPost, url, payload, out, c.retries)
}

func (c *Client) retryJSON(ctx context.Context, method, url string, payload []byte, out any, retries int) error {
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: delay * 2^(attempt-1)
			delay := c.retryDelay << (attempt - 1)
			c.logger.Warn("retrying fetch", "url", url, "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Classify(ctx, ctx.Err())
			}
		}

		err := c.attemptJSON(ctx, method, url, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err

		// Cancellation is never retried.
		if IsCancelled(err) {
			return err
		}
	}

	return lastErr
}

func (c *Client) attemptJSON(ctx context.Context, method, url string, payload []byte, out any) error {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, url, body)
	if err != nil {
		return &Error{Kind: KindInvalid, Message: "failed to create request", Cause: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return httpError(resp.StatusCode, resp.Status)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindInvalid, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// =============================================================================
// RAW REQUESTS
// =============================================================================

// Do issues a single request without retry or per-attempt timeout and
// returns the raw response. Streaming callers own the body and the deadline
// via ctx; they must close the body.
func (c *Client) Do(ctx context.Context, method, url string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &Error{Kind: KindInvalid, Message: "failed to create request", Cause: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, Classify(ctx, err)
	}
	return resp, nil
}

// =============================================================================
// LOCAL FILES
// =============================================================================

// ReadJSONFile decodes a local JSON file into out. Used for manifest URLs
// that point at the filesystem rather than an HTTP endpoint.
func ReadJSONFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Error{Kind: KindUnreachable, Message: "failed to read " + path, Cause: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindInvalid, Message: "failed to parse " + path, Cause: err}
	}
	return nil
}
