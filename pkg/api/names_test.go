// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestExpiryStatus(t *testing.T) {
	now := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		expiresAt   time.Time
		status      string
		shouldRenew bool
	}{
		{now.AddDate(0, 0, -10), ExpiryExpired, true},
		{now, ExpiryExpired, true},
		{now.AddDate(0, 0, 7), ExpiryExpiringSoon, true},
		{now.AddDate(0, 0, 30), ExpiryExpiringSoon, true},
		{now.AddDate(0, 0, 31), ExpiryActive, false},
		{now.AddDate(1, 0, 0), ExpiryActive, false},
	}

	for _, test := range tests {
		profile := &Profile{Name: "alice", ExpiresAt: test.expiresAt}

		st := expiryStatus(profile, now)
		if st.Status != test.status {
			t.Fatalf("expiry %v: expected status %s, got %s", test.expiresAt, test.status, st.Status)
		}
		if st.ShouldRenew != test.shouldRenew {
			t.Fatalf("expiry %v: expected shouldRenew = %t", test.expiresAt, test.shouldRenew)
		}
	}
}

func TestRegisterGatewayValidation(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("validation failures must not cause network traffic")
	})

	if err := client.RegisterGateway(context.Background(), "", "https://example.com/webhook", "s"); err == nil {
		t.Fatal("expected an error for an empty name")
	}
	if err := client.RegisterGateway(context.Background(), "alice", "", "s"); err == nil {
		t.Fatal("expected an error for an empty webhook URL")
	}
}

func TestRegisterGateway(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected a PATCH request, got %s", r.Method)
		}
		if r.URL.Path != "/api/names/alice" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}

		var req registerGatewayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
		}
		if req.GatewayURL != "https://example.com/webhook" || req.WebhookSecret != "s3cret" {
			t.Errorf("unexpected registration payload %+v", req)
		}

		w.WriteHeader(http.StatusOK)
	})

	if err := client.RegisterGateway(context.Background(), "Tell/Alice", "https://example.com/webhook", "s3cret"); err != nil {
		t.Fatal(err)
	}
}

func TestLookup(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Profile{Name: "alice"})
	})

	profile, err := client.Lookup(context.Background(), "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if profile.Name != "alice" {
		t.Fatalf("expected profile alice, got %q", profile.Name)
	}
}
