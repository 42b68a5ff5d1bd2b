// SPDX-FileCopyrightText: 2026 The clawtell-go Authors
//
// SPDX-License-Identifier: MIT

package agent

import (
	"errors"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
)

// ErrNoClients is returned by a WebSocketAgent's Deliver while no consumer
// is connected, leaving the message unacknowledged at the relay.
var ErrNoClients = errors.New("no websocket client connected")

// SendFunc submits an outbound message on behalf of a connected client.
type SendFunc func(to, body, subject string) error

// wsFrame is the JSON frame exchanged with websocket clients. Inbound
// messages use type "message"; clients submit sends with type "send" and
// receive a "status" answer.
type wsFrame struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`

	To      string `json:"to,omitempty"`
	Body    string `json:"body,omitempty"`
	Subject string `json:"subject,omitempty"`

	OK    bool   `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
}

// WebSocketAgent is a Sink exposing delivered messages to websocket
// clients. Its ServeHTTP must be bound to an HTTP endpoint, e.g., /ws.
// Connected clients may also submit outbound sends.
type WebSocketAgent struct {
	upgrader websocket.Upgrader
	send     SendFunc

	mutex   sync.Mutex
	clients map[*wsAgentClient]struct{}
}

// NewWebSocketAgent creates a WebSocketAgent. The SendFunc may be nil, in
// which case client-submitted sends are rejected.
func NewWebSocketAgent(send SendFunc) *WebSocketAgent {
	return &WebSocketAgent{
		upgrader: websocket.Upgrader{},
		send:     send,
		clients:  make(map[*wsAgentClient]struct{}),
	}
}

// ServeHTTP upgrades the request and serves the client until it
// disconnects.
func (wa *WebSocketAgent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wa.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("Upgrading HTTP request to WebSocket errored")
		return
	}

	client := &wsAgentClient{conn: conn}

	wa.mutex.Lock()
	wa.clients[client] = struct{}{}
	wa.mutex.Unlock()

	log.WithField("client", conn.RemoteAddr()).Info("WebSocket client connected")

	client.handleConn(wa)
	wa.drop(client)
}

// Deliver forwards msg to every connected client. It succeeds if at least
// one client received the message; clients with broken connections are
// dropped.
func (wa *WebSocketAgent) Deliver(msg Message) error {
	wa.mutex.Lock()
	clients := make([]*wsAgentClient, 0, len(wa.clients))
	for client := range wa.clients {
		clients = append(clients, client)
	}
	wa.mutex.Unlock()

	if len(clients) == 0 {
		return ErrNoClients
	}

	var (
		delivered int
		result    *multierror.Error
	)
	for _, client := range clients {
		if err := client.writeFrame(wsFrame{Type: "message", Message: &msg}); err != nil {
			log.WithError(err).WithField("client", client.conn.RemoteAddr()).Warn("Sending message to WebSocket client errored")
			result = multierror.Append(result, err)
			wa.drop(client)
		} else {
			delivered++
		}
	}

	if delivered == 0 {
		return result.ErrorOrNil()
	}
	return nil
}

// Clients returns the number of currently connected clients.
func (wa *WebSocketAgent) Clients() int {
	wa.mutex.Lock()
	defer wa.mutex.Unlock()

	return len(wa.clients)
}

// Close disconnects all clients.
func (wa *WebSocketAgent) Close() error {
	wa.mutex.Lock()
	defer wa.mutex.Unlock()

	var result *multierror.Error
	for client := range wa.clients {
		if err := client.conn.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		delete(wa.clients, client)
	}
	return result.ErrorOrNil()
}

func (wa *WebSocketAgent) drop(client *wsAgentClient) {
	wa.mutex.Lock()
	defer wa.mutex.Unlock()

	if _, ok := wa.clients[client]; ok {
		delete(wa.clients, client)
		_ = client.conn.Close()
	}
}

// wsAgentClient wraps one websocket connection. The mutex serializes
// writes, which may originate from Deliver and the client's own read loop.
type wsAgentClient struct {
	sync.Mutex

	conn *websocket.Conn
}

func (client *wsAgentClient) writeFrame(frame wsFrame) error {
	client.Lock()
	defer client.Unlock()

	return client.conn.WriteJSON(frame)
}

func (client *wsAgentClient) handleConn(wa *WebSocketAgent) {
	logger := log.WithField("client", client.conn.RemoteAddr())

	for {
		var frame wsFrame
		if err := client.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.WithError(err).Warn("Reading WebSocket frame errored")
			} else {
				logger.Debug("WebSocket client disconnected")
			}
			return
		}

		switch frame.Type {
		case "send":
			client.handleSend(wa, frame, logger)

		default:
			logger.WithField("type", frame.Type).Info("Received unknown frame type")
		}
	}
}

func (client *wsAgentClient) handleSend(wa *WebSocketAgent, frame wsFrame, logger *log.Entry) {
	var sendErr error
	if wa.send == nil {
		sendErr = errors.New("outbound sending is not configured")
	} else {
		sendErr = wa.send(frame.To, frame.Body, frame.Subject)
	}

	status := wsFrame{Type: "status", OK: sendErr == nil}
	if sendErr != nil {
		status.Error = sendErr.Error()
		logger.WithError(sendErr).WithField("to", frame.To).Warn("Client-submitted send errored")
	}

	if err := client.writeFrame(status); err != nil {
		logger.WithError(err).Warn("Writing status frame errored")
	}
}
