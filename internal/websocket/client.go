// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 64
)

// clientIDCounter gives clients a stable broadcast order.
var clientIDCounter atomic.Uint64

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id      uint64
	hub     *Hub
	conn    *websocket.Conn
	userID  string
	limiter *rate.Limiter
	ctx     context.Context

	// dispatch handles one decoded command on the read goroutine.
	dispatch func(Command)
	// onClose runs once after the read pump exits.
	onClose func()

	mu     sync.Mutex
	send   chan Message
	closed bool

	// frame holds the newest unsent map frame. Frames are full snapshots,
	// so a newer one replaces an unsent older one.
	frame      *Message
	frameReady chan struct{}
}

// NewClient creates a client. userID is empty for anonymous connections.
// limiter may be nil for no inbound limit.
func NewClient(ctx context.Context, hub *Hub, conn *websocket.Conn, userID string, limiter *rate.Limiter) *Client {
	return &Client{
		id:      clientIDCounter.Add(1),
		hub:     hub,
		conn:    conn,
		userID:  userID,
		limiter: limiter,
		ctx:     ctx,
		send:    make(chan Message, sendBuffer),

		frameReady: make(chan struct{}, 1),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// UserID is empty for anonymous clients.
func (c *Client) UserID() string {
	return c.userID
}

// Enqueue queues msg without blocking. It reports false when the buffer is
// full or the client is closed.
func (c *Client) Enqueue(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		metrics.WSMessagesDropped.Inc()
		return false
	}
}

// EnqueueFrame queues a map frame, replacing any frame not yet written. It
// reports false only when the client is closed.
func (c *Client) EnqueueFrame(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if c.frame != nil {
		metrics.WSMessagesDropped.Inc()
	}
	c.frame = &msg
	select {
	case c.frameReady <- struct{}{}:
	default:
	}
	return true
}

// takeFrame returns the pending frame, if any, and clears it.
func (c *Client) takeFrame() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frame == nil {
		return Message{}, false
	}
	msg := *c.frame
	c.frame = nil
	return msg, true
}

// closeSend closes the send channel; the write pump drains what is queued,
// sends a close frame and exits.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) sendError(msg string) {
	c.Enqueue(Message{Type: MessageTypeError, Data: errorData{Message: msg}})
}

// readPump pumps commands from the websocket connection to dispatch.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose()
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Ctx(c.ctx).Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Ctx(c.ctx).Warn().Err(err).Msg("unexpected websocket close error")
			}
			return
		}
		if c.limiter != nil && !c.limiter.Allow() {
			c.sendError("too many messages, slow down")
			continue
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil || cmd.Type == "" {
			c.sendError("malformed command")
			continue
		}
		if cmd.Type == CommandPing {
			c.Enqueue(Message{Type: MessageTypePong})
			continue
		}
		if c.dispatch != nil {
			c.dispatch(cmd)
		}
	}
}

// writePump pumps messages from the send channel to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	write := func(message Message) bool {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			logging.Ctx(c.ctx).Error().Err(err).Msg("failed to set write deadline")
			return false
		}
		data, err := json.Marshal(message)
		if err != nil {
			logging.Ctx(c.ctx).Error().Err(err).Str("type", message.Type).Msg("failed to encode websocket message")
			return true
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logging.Ctx(c.ctx).Debug().Err(err).Msg("websocket write failed")
			return false
		}
		metrics.WSMessagesSent.Inc()
		return true
	}

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if !write(message) {
				return
			}

		case <-c.frameReady:
			if message, ok := c.takeFrame(); ok && !write(message) {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
