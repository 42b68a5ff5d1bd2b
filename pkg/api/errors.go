// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// AuthenticationError is raised for HTTP 401 responses or a missing API key.
// It is never retried.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return "invalid API key"
	}
	return e.Message
}

// NotFoundError is raised for HTTP 404 responses. It is never retried.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	if e.Message == "" {
		return "resource not found"
	}
	return e.Message
}

// RateLimitError is raised for HTTP 429 responses. RetryAfter carries the
// server-supplied Retry-After duration, or zero if the header was absent.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return "rate limit exceeded"
	}
	return e.Message
}

// ServerError is raised for HTTP responses with a status code of 500 or
// above, or for any network-level failure. In the latter case StatusCode is
// zero. ServerErrors are considered transient and will be retried.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport failure: %s", e.Message)
	}
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// ClientError is raised for every other non-2xx status, i.e., below 500 and
// none of 401, 404 or 429. It is never retried.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// ValidationError is raised locally before any network call when a request
// would be malformed, e.g., an empty recipient name.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsRetryable reports whether err may resolve itself on a later attempt.
// Only rate limiting and transient server or transport failures qualify.
func IsRetryable(err error) bool {
	switch err.(type) {
	case *RateLimitError, *ServerError:
		return true
	default:
		return false
	}
}

// errorBody is the relay's JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// classifyResponse maps a completed non-2xx HTTP response to its typed
// error. The raw body is inspected for the relay's error message.
func classifyResponse(resp *http.Response, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthenticationError{Message: eb.Error}

	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Message: eb.Error}

	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Message:    eb.Error,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}

	case resp.StatusCode >= 500:
		return &ServerError{StatusCode: resp.StatusCode, Message: eb.Error}

	default:
		msg := eb.Error
		if msg == "" {
			msg = "request failed"
		}
		return &ClientError{StatusCode: resp.StatusCode, Message: msg}
	}
}

// parseRetryAfter interprets a Retry-After header value in seconds.
// Invalid or absent values map to zero.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}

	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
