// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultSubject is used when a send omits the subject.
	DefaultSubject = "Message"

	// PollTimeoutMin, PollTimeoutMax bound the server-side long-poll wait.
	PollTimeoutMin = 1
	PollTimeoutMax = 30

	// PollLimitMin, PollLimitMax bound the batch size of one poll.
	PollLimitMin = 1
	PollLimitMax = 100

	// pollTimeoutMargin is added to the server-side wait to form the
	// client-side deadline, so the executor never cancels a connection
	// the relay is legitimately holding open.
	pollTimeoutMargin = 5 * time.Second
)

// Message is a relay message. The relay assigns the ID on send; messages
// are read-only to clients.
type Message struct {
	ID                string    `json:"id"`
	From              string    `json:"from"`
	To                string    `json:"to,omitempty"`
	Subject           string    `json:"subject,omitempty"`
	Body              string    `json:"body"`
	CreatedAt         time.Time `json:"created_at"`
	ThreadID          string    `json:"thread_id,omitempty"`
	ReplyToID         string    `json:"reply_to_id,omitempty"`
	AutoReplyEligible bool      `json:"auto_reply_eligible,omitempty"`
}

type sendRequest struct {
	To      string `json:"to"`
	Body    string `json:"body"`
	Subject string `json:"subject"`
	ReplyTo string `json:"replyTo,omitempty"`
}

// SendResponse is the relay's answer to a message send.
type SendResponse struct {
	MessageID string    `json:"messageId"`
	SentAt    time.Time `json:"sentAt"`
}

// Send delivers a message to the named agent. The recipient is
// canonicalized first; an empty subject becomes DefaultSubject. Recipient
// and body must be non-empty after trimming, otherwise a ValidationError
// is returned before any network traffic. Retried sends may duplicate on
// the relay's side, see Execute.
func (c *Client) Send(ctx context.Context, to, body, subject string) (*SendResponse, error) {
	return c.send(ctx, to, body, subject, "")
}

// SendReply behaves like Send but links the new message to the message it
// answers.
func (c *Client) SendReply(ctx context.Context, to, body, subject, replyToID string) (*SendResponse, error) {
	return c.send(ctx, to, body, subject, replyToID)
}

func (c *Client) send(ctx context.Context, to, body, subject, replyToID string) (*SendResponse, error) {
	to = CanonicalName(to)
	if to == "" {
		return nil, &ValidationError{Message: "recipient name must not be empty"}
	}
	if strings.TrimSpace(body) == "" {
		return nil, &ValidationError{Message: "message body must not be empty"}
	}
	if subject == "" {
		subject = DefaultSubject
	}

	req := sendRequest{To: to, Body: body, Subject: subject, ReplyTo: replyToID}

	var resp SendResponse
	if err := c.Execute(ctx, http.MethodPost, "/messages/send", req, nil, DefaultTimeout, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InboxOptions filter an inbox fetch.
type InboxOptions struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

// InboxResponse is the relay's answer to an inbox fetch.
type InboxResponse struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total,omitempty"`
}

// Inbox fetches messages from the agent's inbox.
func (c *Client) Inbox(ctx context.Context, opts InboxOptions) (*InboxResponse, error) {
	params := url.Values{}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(clamp(opts.Limit, PollLimitMin, PollLimitMax)))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.UnreadOnly {
		params.Set("unread", "true")
	}

	var resp InboxResponse
	if err := c.Execute(ctx, http.MethodGet, "/messages/inbox", nil, params, DefaultTimeout, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PollResponse is the relay's answer to a long-poll.
type PollResponse struct {
	Messages []Message `json:"messages"`
	WaitedMs int       `json:"waitedMs"`
}

// Poll long-polls the inbox. The relay holds the connection open for up to
// timeoutSeconds or until a message arrives. The client-side deadline
// exceeds the requested server-side wait by a fixed margin.
func (c *Client) Poll(ctx context.Context, timeoutSeconds, limit int) (*PollResponse, error) {
	timeoutSeconds = clamp(timeoutSeconds, PollTimeoutMin, PollTimeoutMax)
	limit = clamp(limit, PollLimitMin, PollLimitMax)

	params := url.Values{}
	params.Set("timeout", strconv.Itoa(timeoutSeconds))
	params.Set("limit", strconv.Itoa(limit))

	attemptTimeout := time.Duration(timeoutSeconds)*time.Second + pollTimeoutMargin

	var resp PollResponse
	if err := c.Execute(ctx, http.MethodGet, "/messages/poll", nil, params, attemptTimeout, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type ackRequest struct {
	MessageIDs []string `json:"messageIds"`
}

// AckResponse is the relay's answer to a batch acknowledgment.
type AckResponse struct {
	Success bool `json:"success"`
	Acked   int  `json:"acked"`
}

// Ack acknowledges processed messages in one batch. The relay marks them
// delivered and schedules their deletion. An empty batch is a no-op and
// causes no network traffic.
func (c *Client) Ack(ctx context.Context, messageIDs []string) (*AckResponse, error) {
	if len(messageIDs) == 0 {
		return &AckResponse{Success: true}, nil
	}

	var resp AckResponse
	if err := c.Execute(ctx, http.MethodPost, "/messages/ack", ackRequest{MessageIDs: messageIDs}, nil, DefaultTimeout, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarkRead marks a single message as read.
//
// Deprecated: use Ack for batch acknowledgment. The relay still serves
// this endpoint.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	return c.Execute(ctx, http.MethodPost, "/messages/"+url.PathEscape(messageID)+"/read", nil, nil, DefaultTimeout, nil)
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
