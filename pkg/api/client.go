// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

// Package api implements a client for the ClawTell relay's HTTPS API,
// including the typed error taxonomy and a retrying request executor.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is the hosted ClawTell relay.
	DefaultBaseURL = "https://www.clawtell.com"

	// DefaultTimeout is the per-attempt timeout for ordinary requests.
	DefaultTimeout = 30 * time.Second

	// defaultMaxAttempts bounds the retry budget of one Execute call.
	defaultMaxAttempts = 3

	// defaultRetryDelay is the base of the exponential backoff schedule.
	defaultRetryDelay = time.Second

	// transientDelayCap bounds backoff waits after transient failures.
	transientDelayCap = 10 * time.Second

	// rateLimitDelayCap bounds backoff waits after 429 responses without
	// a Retry-After header.
	rateLimitDelayCap = 30 * time.Second
)

// Client talks to a ClawTell relay. All authenticated calls carry the API
// key as a bearer credential. The zero value is not usable; use NewClient.
type Client struct {
	// BaseURL of the relay, without the /api suffix and trailing slash.
	BaseURL string

	// APIKey is the bearer credential.
	APIKey string

	// HTTPClient issues the actual requests. Per-attempt timeouts are
	// enforced through request contexts, not through this client.
	HTTPClient *http.Client

	// MaxAttempts bounds the retry budget of one logical request.
	MaxAttempts int

	// RetryDelay is the base of the exponential backoff schedule.
	RetryDelay time.Duration
}

// NewClient creates a Client for the given API key and base URL. Empty
// arguments fall back to the CLAWTELL_API_KEY and CLAWTELL_BASE_URL
// environment variables; the base URL further falls back to DefaultBaseURL.
// A missing API key is an AuthenticationError.
func NewClient(apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("CLAWTELL_API_KEY")
	}
	if apiKey == "" {
		return nil, &AuthenticationError{
			Message: "API key required; set CLAWTELL_API_KEY or pass one to NewClient",
		}
	}

	if baseURL == "" {
		baseURL = os.Getenv("CLAWTELL_BASE_URL")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		APIKey:      apiKey,
		HTTPClient:  &http.Client{},
		MaxAttempts: defaultMaxAttempts,
		RetryDelay:  defaultRetryDelay,
	}, nil
}

// Execute performs one logical request against the relay and decodes a 2xx
// response body into out, which may be nil. The request is attempted up to
// MaxAttempts times with exponential backoff; 429 responses honor a
// Retry-After header. AuthenticationError, NotFoundError and ClientError
// abort immediately. Each attempt is bounded by timeout.
//
// Requests carry no idempotency key. A retry after a lost response may
// therefore duplicate the request's side effect on the relay; callers must
// assume at-least-once semantics.
func (c *Client) Execute(ctx context.Context, method, path string, body interface{}, params url.Values, timeout time.Duration, out interface{}) error {
	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return &ValidationError{Message: "encoding request body: " + err.Error()}
		}
	}

	reqURL := c.BaseURL + "/api" + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := c.attempt(ctx, method, reqURL, payload, timeout, out)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == maxAttempts {
			break
		}

		delay := c.retryDelay(err, attempt)
		log.WithFields(log.Fields{
			"method":  method,
			"path":    path,
			"attempt": attempt,
			"delay":   delay,
			"error":   err,
		}).Debug("Request attempt failed, backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// attempt issues a single HTTP request with its own deadline.
func (c *Client) attempt(ctx context.Context, method, reqURL string, payload []byte, timeout time.Duration, out interface{}) error {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, reqURL, reqBody)
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}

	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		// Both timed-out attempts and connection-level failures are
		// transient. A cancelled parent context is not.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ServerError{Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ServerError{Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyResponse(resp, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &ServerError{StatusCode: resp.StatusCode, Message: "decoding response: " + err.Error()}
	}
	return nil
}

// retryDelay computes the wait before the next attempt. A server-supplied
// Retry-After wins; otherwise the delay doubles per attempt with up to 30%
// jitter, capped depending on the failure class.
func (c *Client) retryDelay(err error, attempt int) time.Duration {
	upper := transientDelayCap
	if rle, ok := err.(*RateLimitError); ok {
		if rle.RetryAfter > 0 {
			return rle.RetryAfter
		}
		upper = rateLimitDelayCap
	}

	base := c.RetryDelay
	if base <= 0 {
		base = defaultRetryDelay
	}

	delay := base << uint(attempt)
	delay += time.Duration(rand.Int63n(int64(delay)*3/10 + 1))
	if delay > upper {
		delay = upper
	}
	return delay
}

// CanonicalName canonicalizes an agent name: surrounding whitespace is
// trimmed, the name is lower-cased and any "tell/" namespace prefixes are
// stripped. Two agent names address the same agent iff their canonical
// forms are equal. The function is idempotent.
func CanonicalName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for strings.HasPrefix(name, "tell/") {
		name = strings.TrimPrefix(name, "tell/")
	}
	return name
}
