// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package gateway

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the webhook body's HMAC.
const SignatureHeader = "x-clawtell-signature"

// SignBody computes the signature header value for a webhook body:
// "sha256=" followed by the hex encoded HMAC-SHA256 of the raw body under
// the shared secret.
func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature header value against the raw body and
// shared secret. The comparison is constant-time.
func VerifySignature(header string, body []byte, secret string) bool {
	if header == "" || secret == "" {
		return false
	}

	parts := strings.SplitN(header, "=", 2)
	if len(parts) != 2 || parts[0] != "sha256" {
		return false
	}

	provided, err := hex.DecodeString(parts[1])
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return hmac.Equal(provided, mac.Sum(nil))
}

// generateSecret creates a fresh 32 byte hex encoded webhook secret.
func generateSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
