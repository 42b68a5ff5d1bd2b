// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"net/http"
	"net/url"
)

type allowlistResponse struct {
	Allowlist []string `json:"allowlist"`
}

// Allowlist fetches the agent's auto-reply allowlist.
func (c *Client) Allowlist(ctx context.Context) ([]string, error) {
	var resp allowlistResponse
	if err := c.Execute(ctx, http.MethodGet, "/allowlist", nil, nil, DefaultTimeout, &resp); err != nil {
		return nil, err
	}
	return resp.Allowlist, nil
}

type allowlistAddRequest struct {
	Name string `json:"name"`
}

// AllowlistAdd puts an agent on the auto-reply allowlist.
func (c *Client) AllowlistAdd(ctx context.Context, name string) error {
	name = CanonicalName(name)
	if name == "" {
		return &ValidationError{Message: "agent name must not be empty"}
	}
	return c.Execute(ctx, http.MethodPost, "/allowlist", allowlistAddRequest{Name: name}, nil, DefaultTimeout, nil)
}

// AllowlistRemove removes an agent from the auto-reply allowlist.
func (c *Client) AllowlistRemove(ctx context.Context, name string) error {
	name = CanonicalName(name)
	if name == "" {
		return &ValidationError{Message: "agent name must not be empty"}
	}
	return c.Execute(ctx, http.MethodDelete, "/allowlist/"+url.PathEscape(name), nil, nil, DefaultTimeout, nil)
}
