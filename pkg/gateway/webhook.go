// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package gateway

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/clawtell/clawtell-go/pkg/agent"
	"github.com/clawtell/clawtell-go/pkg/api"
)

// webhookPayload is the body the relay pushes to a registered webhook.
type webhookPayload struct {
	MessageID         string `json:"messageId"`
	From              string `json:"from"`
	Body              string `json:"body"`
	Subject           string `json:"subject,omitempty"`
	ThreadID          string `json:"threadId,omitempty"`
	ReplyToMessageID  string `json:"replyToMessageId,omitempty"`
	AutoReplyEligible bool   `json:"autoReplyEligible,omitempty"`
	Timestamp         int64  `json:"timestamp,omitempty"`
}

// webhookAck is the success response echoing the message id.
type webhookAck struct {
	Received  bool   `json:"received"`
	MessageID string `json:"messageId"`
}

// ServeWebhook handles one pushed delivery: method check, per-source rate
// limit, bounded body read, signature verification, payload validation and
// routing into the sink. A failed sink handoff answers 500 so the relay
// treats the delivery as failed and may retry.
func (g *Gateway) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	logger := g.log().WithField("remote", r.RemoteAddr)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if !g.limiter.Allow(sourceKey(r)) {
		logger.Debug("Webhook request exceeded rate limit")
		sendJSON(w, http.StatusTooManyRequests, errorBody{Error: "Rate limit exceeded"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, g.conf.MaxBodySize)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		logger.WithError(err).Debug("Reading webhook body errored")
		sendJSON(w, http.StatusBadRequest, errorBody{Error: "Failed to read body"})
		return
	}

	if secret := g.secret(); secret != "" {
		if !VerifySignature(r.Header.Get(SignatureHeader), raw, secret) {
			logger.Debug("Webhook signature verification failed")
			sendJSON(w, http.StatusUnauthorized, errorBody{Error: "Invalid signature"})
			return
		}
	}

	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		sendJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid JSON"})
		return
	}
	if payload.MessageID == "" || payload.From == "" || payload.Body == "" {
		sendJSON(w, http.StatusBadRequest, errorBody{Error: "Missing required fields"})
		return
	}

	// The window is shared with the poll loop; reserving the id before the
	// handoff keeps a concurrently polled copy of the same message out of
	// the sink. A window-known message is acknowledged without another
	// handoff.
	if !g.window.TryReserve(payload.MessageID) {
		logger.WithField("message", payload.MessageID).Debug("Suppressing duplicate webhook delivery")
		sendJSON(w, http.StatusOK, webhookAck{Received: true, MessageID: payload.MessageID})
		return
	}

	msg := payload.toMessage()
	if err := g.sink.Deliver(msg); err != nil {
		g.window.Release(msg.ID)

		logger.WithError(err).WithField("message", msg.ID).Warn("Routing webhook message errored")
		g.setError(err)
		sendJSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to process message"})
		return
	}

	g.markInbound()

	logger.WithFields(log.Fields{
		"message": msg.ID,
		"from":    msg.From,
	}).Info("Routed webhook message")

	sendJSON(w, http.StatusOK, webhookAck{Received: true, MessageID: msg.ID})
}

func (payload webhookPayload) toMessage() agent.Message {
	createdAt := time.Now()
	if payload.Timestamp > 0 {
		createdAt = time.UnixMilli(payload.Timestamp)
	}

	return agent.Message{
		ID:                payload.MessageID,
		From:              api.CanonicalName(payload.From),
		Subject:           payload.Subject,
		Body:              payload.Body,
		CreatedAt:         createdAt,
		ThreadID:          payload.ThreadID,
		ReplyToID:         payload.ReplyToMessageID,
		AutoReplyEligible: payload.AutoReplyEligible,
	}
}

// sourceKey derives the rate limit key of a request, preferring forwarding
// headers over the socket address.
func sourceKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0]); first != "" {
			return first
		}
	}
	if realIP := r.Header.Get("X-Real-Ip"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

type errorBody struct {
	Error string `json:"error"`
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("Writing webhook response errored")
	}
}
