// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testClient wires a Client against a test server with a fast backoff.
func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient("test-key", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	client.RetryDelay = time.Millisecond

	return client, srv
}

func TestExecuteAuthErrorNoRetry(t *testing.T) {
	var attempts int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid key"}`))
	})

	err := client.Execute(context.Background(), http.MethodGet, "/me", nil, nil, 0, nil)
	if _, ok := err.(*AuthenticationError); !ok {
		t.Fatalf("expected an AuthenticationError, got %v", err)
	}
	if n := atomic.LoadInt32(&attempts); n != 1 {
		t.Fatalf("expected 1 attempt, got %d", n)
	}
}

func TestExecuteNotFoundNoRetry(t *testing.T) {
	var attempts int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	err := client.Execute(context.Background(), http.MethodGet, "/names/nobody", nil, nil, 0, nil)
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected a NotFoundError, got %v", err)
	}
	if n := atomic.LoadInt32(&attempts); n != 1 {
		t.Fatalf("expected 1 attempt, got %d", n)
	}
}

func TestExecuteServerErrorExhaustsAttempts(t *testing.T) {
	var attempts int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	})

	err := client.Execute(context.Background(), http.MethodGet, "/me", nil, nil, 0, nil)
	se, ok := err.(*ServerError)
	if !ok {
		t.Fatalf("expected a ServerError, got %v", err)
	}
	if se.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", se.StatusCode)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestExecuteBackoffGrowsMonotonically(t *testing.T) {
	var (
		mutex    sync.Mutex
		arrivals []time.Time
	)

	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		mutex.Lock()
		arrivals = append(arrivals, time.Now())
		mutex.Unlock()

		w.WriteHeader(http.StatusInternalServerError)
	})
	client.RetryDelay = 50 * time.Millisecond

	if err := client.Execute(context.Background(), http.MethodGet, "/me", nil, nil, 0, nil); err == nil {
		t.Fatal("expected the exhausted budget to surface an error")
	}

	mutex.Lock()
	defer mutex.Unlock()

	if len(arrivals) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(arrivals))
	}

	first := arrivals[1].Sub(arrivals[0])
	second := arrivals[2].Sub(arrivals[1])

	// The schedule doubles per attempt; even with maximum jitter on the
	// first delay the second one must not undercut it.
	if first < 100*time.Millisecond {
		t.Fatalf("first inter-attempt delay %v undercuts the backoff base", first)
	}
	if second < first {
		t.Fatalf("backoff shrank: first delay %v, second delay %v", first, second)
	}
}

func TestExecuteEventualSuccess(t *testing.T) {
	var attempts int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "alice"})
	})

	var out struct {
		Name string `json:"name"`
	}
	if err := client.Execute(context.Background(), http.MethodGet, "/me", nil, nil, 0, &out); err != nil {
		t.Fatal(err)
	}
	if out.Name != "alice" {
		t.Fatalf("expected name alice, got %q", out.Name)
	}
	if n := atomic.LoadInt32(&attempts); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestExecuteRateLimitHonorsRetryAfter(t *testing.T) {
	var attempts int32
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	start := time.Now()
	if err := client.Execute(context.Background(), http.MethodGet, "/me", nil, nil, 0, nil); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Fatalf("expected to wait at least the Retry-After second, waited %v", elapsed)
	}
	if n := atomic.LoadInt32(&attempts); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
}

func TestExecuteTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client, err := NewClient("test-key", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	client.RetryDelay = time.Millisecond

	err = client.Execute(context.Background(), http.MethodGet, "/me", nil, nil, 0, nil)
	se, ok := err.(*ServerError)
	if !ok {
		t.Fatalf("expected a ServerError, got %v", err)
	}
	if se.StatusCode != 0 {
		t.Fatalf("expected status code 0 for a transport failure, got %d", se.StatusCode)
	}
}

func TestExecuteContextCancellation(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client.RetryDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := client.Execute(ctx, http.MethodGet, "/me", nil, nil, 0, nil)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExecuteBearerHeader(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", auth)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected Content-Type header %q", ct)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := client.Execute(context.Background(), http.MethodGet, "/me", nil, nil, 0, nil); err != nil {
		t.Fatal(err)
	}
}

func TestNewClientMissingKey(t *testing.T) {
	t.Setenv("CLAWTELL_API_KEY", "")

	if _, err := NewClient("", ""); err == nil {
		t.Fatal("expected an error for a missing API key")
	} else if _, ok := err.(*AuthenticationError); !ok {
		t.Fatalf("expected an AuthenticationError, got %v", err)
	}
}

func TestNewClientEnvFallback(t *testing.T) {
	t.Setenv("CLAWTELL_API_KEY", "env-key")
	t.Setenv("CLAWTELL_BASE_URL", "https://relay.example.com/")

	client, err := NewClient("", "")
	if err != nil {
		t.Fatal(err)
	}
	if client.APIKey != "env-key" {
		t.Fatalf("expected the key from the environment, got %q", client.APIKey)
	}
	if client.BaseURL != "https://relay.example.com" {
		t.Fatalf("expected a trimmed base URL, got %q", client.BaseURL)
	}
}

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Alice", "alice"},
		{"  bob  ", "bob"},
		{"tell/carol", "carol"},
		{"tell/tell/dave", "dave"},
		{"TELL/Erin", "erin"},
		{"", ""},
		{"   ", ""},
	}

	for _, test := range tests {
		got := CanonicalName(test.input)
		if got != test.expected {
			t.Fatalf("CanonicalName(%q): expected %q, got %q", test.input, test.expected, got)
		}
		if again := CanonicalName(got); again != got {
			t.Fatalf("CanonicalName(%q) is not idempotent: %q != %q", test.input, got, again)
		}
	}
}
