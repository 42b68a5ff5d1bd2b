// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"
)

// Profile describes an agent as known to the relay.
type Profile struct {
	Name      string    `json:"name"`
	FullName  string    `json:"fullName,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	JoinedAt  time.Time `json:"joinedAt,omitempty"`
	Unread    int       `json:"unread,omitempty"`
}

// Me fetches the authenticated agent's own profile.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.Execute(ctx, http.MethodGet, "/me", nil, nil, DefaultTimeout, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Lookup fetches another agent's public profile by name.
func (c *Client) Lookup(ctx context.Context, name string) (*Profile, error) {
	name = CanonicalName(name)
	if name == "" {
		return nil, &ValidationError{Message: "agent name must not be empty"}
	}

	var p Profile
	if err := c.Execute(ctx, http.MethodGet, "/names/"+url.PathEscape(name), nil, nil, DefaultTimeout, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CheckAvailable reports whether a name is still free for registration.
func (c *Client) CheckAvailable(ctx context.Context, name string) (bool, error) {
	name = CanonicalName(name)
	if name == "" {
		return false, &ValidationError{Message: "agent name must not be empty"}
	}

	params := url.Values{}
	params.Set("name", name)

	var resp struct {
		Available bool `json:"available"`
	}
	if err := c.Execute(ctx, http.MethodGet, "/names/check", nil, params, DefaultTimeout, &resp); err != nil {
		return false, err
	}
	return resp.Available, nil
}

type registerGatewayRequest struct {
	GatewayURL    string `json:"gateway_url"`
	WebhookSecret string `json:"webhook_secret"`
}

// RegisterGateway announces a public webhook URL and its shared HMAC secret
// to the relay, so pushed deliveries for the named agent reach it.
func (c *Client) RegisterGateway(ctx context.Context, name, webhookURL, webhookSecret string) error {
	name = CanonicalName(name)
	if name == "" {
		return &ValidationError{Message: "agent name must not be empty"}
	}
	if webhookURL == "" {
		return &ValidationError{Message: "webhook URL must not be empty"}
	}

	req := registerGatewayRequest{GatewayURL: webhookURL, WebhookSecret: webhookSecret}
	return c.Execute(ctx, http.MethodPatch, "/names/"+url.PathEscape(name), req, nil, DefaultTimeout, nil)
}

// ExpiryStatus describes how close a name registration is to expiry.
type ExpiryStatus struct {
	ExpiresAt   time.Time
	DaysLeft    int
	Status      string
	ShouldRenew bool
	Message     string
}

// Expiry status values.
const (
	ExpiryExpired      = "expired"
	ExpiryExpiringSoon = "expiring_soon"
	ExpiryActive       = "active"
)

// CheckExpiry fetches the own profile and derives the registration's expiry
// status. Renewal is recommended within 30 days of expiry.
func (c *Client) CheckExpiry(ctx context.Context) (*ExpiryStatus, error) {
	profile, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}
	status := expiryStatus(profile, time.Now())
	return &status, nil
}

func expiryStatus(profile *Profile, now time.Time) ExpiryStatus {
	daysLeft := int(math.Ceil(profile.ExpiresAt.Sub(now).Hours() / 24))

	st := ExpiryStatus{ExpiresAt: profile.ExpiresAt, DaysLeft: daysLeft}
	switch {
	case daysLeft <= 0:
		st.Status = ExpiryExpired
		st.ShouldRenew = true
		st.Message = fmt.Sprintf("registration expired %d days ago, renew now to keep %s", -daysLeft, profile.Name)

	case daysLeft <= 30:
		st.Status = ExpiryExpiringSoon
		st.ShouldRenew = true
		st.Message = fmt.Sprintf("registration expires in %d days", daysLeft)

	default:
		st.Status = ExpiryActive
		st.Message = fmt.Sprintf("registration valid for %d more days", daysLeft)
	}
	return st
}

type renewRequest struct {
	Years int `json:"years"`
}

// RenewResponse is the relay's answer to a renewal request. Depending on
// the relay's mode it either points to a checkout URL or renews directly.
type RenewResponse struct {
	CheckoutURL string    `json:"checkoutUrl,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

// Renew extends the name registration by the given number of years.
func (c *Client) Renew(ctx context.Context, years int) (*RenewResponse, error) {
	if years < 1 {
		years = 1
	}

	var resp RenewResponse
	if err := c.Execute(ctx, http.MethodPost, "/renew", renewRequest{Years: years}, nil, DefaultTimeout, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
