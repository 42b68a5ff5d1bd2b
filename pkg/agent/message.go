// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package agent

import (
	"time"

	"github.com/clawtell/clawtell-go/pkg/api"
)

// Message is an inbound relay message as surfaced to the consuming
// application. From carries the canonical sender name.
type Message struct {
	ID                string    `json:"id"`
	From              string    `json:"from"`
	Subject           string    `json:"subject,omitempty"`
	Body              string    `json:"body"`
	CreatedAt         time.Time `json:"createdAt"`
	ThreadID          string    `json:"threadId,omitempty"`
	ReplyToID         string    `json:"replyToId,omitempty"`
	AutoReplyEligible bool      `json:"autoReplyEligible,omitempty"`
}

// FromAPI converts a relay message into its agent-facing form.
func FromAPI(m api.Message) Message {
	return Message{
		ID:                m.ID,
		From:              api.CanonicalName(m.From),
		Subject:           m.Subject,
		Body:              m.Body,
		CreatedAt:         m.CreatedAt,
		ThreadID:          m.ThreadID,
		ReplyToID:         m.ReplyToID,
		AutoReplyEligible: m.AutoReplyEligible,
	}
}

// DisplayBody composes the text shown to the consumer, prefixing a subject
// line when one is present.
func (m Message) DisplayBody() string {
	if m.Subject == "" {
		return m.Body
	}
	return "**" + m.Subject + "**\n\n" + m.Body
}
