// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package websocket

import (
	"context"
	"sort"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/metrics"
	"github.com/tomtom215/kampai/internal/models"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types sent to clients.
const (
	MessageTypeFrame     = "frame"
	MessageTypeKampai    = "kampai"
	MessageTypeChat      = "chat"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"
	MessageTypeSignedOut = "signed_out"
)

// Message is a message sent to a client.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Command is a message received from a client.
type Command struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type errorData struct {
	Message string `json:"message"`
}

// Hub tracks connected clients and broadcasts to them.
type Hub struct {
	broadcast chan Message

	mu      sync.RWMutex
	clients map[*Client]struct{}
	// kampai is replayed to new clients so they do not wait for the next poll.
	kampai []models.KampaiNow
}

// NewHub creates a hub. Serve must run for broadcasts to be delivered.
func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan Message, 256),
		clients:   make(map[*Client]struct{}),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	kampai := h.kampai
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	logging.Ctx(c.ctx).Debug().Int("total_clients", n).Msg("websocket client connected")
	if kampai != nil {
		c.Enqueue(Message{Type: MessageTypeKampai, Data: kampai})
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.closeSend()
	if ok {
		metrics.WSConnections.Dec()
		logging.Ctx(c.ctx).Debug().Int("total_clients", n).Msg("websocket client disconnected")
	}
}

// Serve delivers broadcasts until ctx is done, then closes every client.
// It implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		// Shutdown wins over a pending broadcast.
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// String names the hub in supervisor logs.
func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ClientCount()
	h.closeAllClients()
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClients returns the clients matching keep in id order.
func (h *Hub) sortedClients(keep func(*Client) bool) []*Client {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if keep == nil || keep(c) {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

// broadcastToClients enqueues message for every client. Slow clients lose
// the message rather than stall the others.
func (h *Hub) broadcastToClients(message Message) {
	for _, c := range h.sortedClients(nil) {
		c.Enqueue(message)
	}
}

func (h *Hub) closeAllClients() {
	for _, c := range h.sortedClients(nil) {
		h.unregister(c)
	}
}

// BroadcastJSON queues a message for all clients.
func (h *Hub) BroadcastJSON(messageType string, data any) {
	select {
	case h.broadcast <- Message{Type: messageType, Data: data}:
	default:
		logging.Warn().Str("message_type", messageType).Msg("broadcast channel full, dropping message")
	}
}

// BroadcastKampai publishes the active kampai list. It is the poller's
// broadcast callback.
func (h *Hub) BroadcastKampai(list []models.KampaiNow) {
	if list == nil {
		list = []models.KampaiNow{}
	}
	h.mu.Lock()
	h.kampai = list
	h.mu.Unlock()
	h.BroadcastJSON(MessageTypeKampai, list)
}

// DisconnectUser tells every connection of userID that the user signed out
// and closes them. It returns the number of closed connections.
func (h *Hub) DisconnectUser(userID string) int {
	if userID == "" {
		return 0
	}
	clients := h.sortedClients(func(c *Client) bool { return c.userID == userID })
	for _, c := range clients {
		c.Enqueue(Message{Type: MessageTypeSignedOut})
		h.unregister(c)
	}
	if len(clients) > 0 {
		logging.Info().Str("user_id", userID).Int("connections", len(clients)).Msg("Closed websocket connections after sign-out")
	}
	return len(clients)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
