// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/kampai/internal/auth"
	"github.com/tomtom215/kampai/internal/chatroom"
	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/locations"
	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/mapview"
	"github.com/tomtom215/kampai/internal/models"
)

// Commands accepted from clients.
const (
	CommandPing           = "ping"
	CommandView           = "view"
	CommandSearch         = "search"
	CommandFilter         = "filter"
	CommandClickMarker    = "click_marker"
	CommandClickCluster   = "click_cluster"
	CommandClickMap       = "click_map"
	CommandDistricts      = "districts"
	CommandClickDistrict  = "click_district"
	CommandClearSelection = "clear_selection"
	CommandJoinChat       = "join_chat"
	CommandLeaveChat      = "leave_chat"
)

type viewCommand struct {
	Center *geo.Coordinate  `json:"center,omitempty"`
	Bounds *geo.BoundingBox `json:"bounds,omitempty"`
	Zoom   float64          `json:"zoom"`
	Width  int              `json:"width"`
	Height int              `json:"height"`
}

type idCommand struct {
	ID string `json:"id"`
}

type filterCommand struct {
	Category string `json:"category"`
}

type districtsCommand struct {
	On bool `json:"on"`
}

type districtClickCommand struct {
	District string `json:"district"`
}

type chatCommand struct {
	LocationID string `json:"location_id"`
}

// HandlerConfig wires the upgrade handler.
type HandlerConfig struct {
	Hub       *Hub
	Tokens    *auth.TokenManager
	Locations *locations.Service
	Chat      *chatroom.Service
	Feed      mapview.Subscriber
	// Session is the template for every map session; UserID is filled in
	// per connection.
	Session mapview.Config
	// MessageRate limits inbound commands per connection. Zero disables it.
	MessageRate    float64
	MessageBurst   int
	AllowedOrigins []string
}

// Handler upgrades requests to map connections.
type Handler struct {
	cfg      HandlerConfig
	upgrader websocket.Upgrader
}

// NewHandler creates the upgrade handler.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkOrigin,
	}
	return h
}

// checkOrigin rejects browser connections from origins outside the CORS list.
// Requests without an Origin header come from non-browser clients and carry
// their token explicitly.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	logging.Ctx(r.Context()).Warn().Str("origin", origin).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// userID authenticates the upgrade request from the Authorization header,
// the token cookie or a token query parameter. A missing or invalid token
// yields an anonymous connection.
func (h *Handler) userID(r *http.Request) string {
	if h.cfg.Tokens == nil {
		return ""
	}
	var raw string
	if v := r.Header.Get("Authorization"); v != "" {
		if scheme, token, ok := strings.Cut(v, " "); ok && strings.EqualFold(scheme, "Bearer") {
			raw = token
		}
	}
	if raw == "" {
		if c, err := r.Cookie(auth.TokenCookie); err == nil {
			raw = c.Value
		}
	}
	if raw == "" {
		raw = r.URL.Query().Get("token")
	}
	if raw == "" {
		return ""
	}
	claims, err := h.cfg.Tokens.Validate(raw)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket token rejected, continuing anonymously")
		return ""
	}
	return claims.UserID()
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	// The request context ends with the handler; the connection outlives it.
	ctx := context.WithoutCancel(r.Context())
	if userID != "" {
		ctx = logging.ContextWithUserID(ctx, userID)
	}

	var limiter *rate.Limiter
	if h.cfg.MessageRate > 0 {
		burst := h.cfg.MessageBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(h.cfg.MessageRate), burst)
	}

	client := NewClient(ctx, h.cfg.Hub, conn, userID, limiter)
	cc := &connection{handler: h, client: client}

	sessCfg := h.cfg.Session
	sessCfg.UserID = userID
	cc.session = mapview.NewSession(ctx, h.cfg.Locations, h.cfg.Feed, sessCfg, func(f mapview.Frame) {
		client.EnqueueFrame(Message{Type: MessageTypeFrame, Data: f})
	})

	client.dispatch = cc.dispatch
	client.onClose = cc.close

	h.cfg.Hub.register(client)
	client.Start()
	cc.session.Start()
}

// connection is the per-client state the read pump dispatches to.
type connection struct {
	handler *Handler
	client  *Client
	session *mapview.Session

	mu   sync.Mutex
	room *chatroom.Room
}

func (c *connection) close() {
	c.session.Close()
	c.leaveChat()
}

func decode[T any](c *connection, cmd Command) (T, bool) {
	var v T
	if len(cmd.Data) == 0 {
		c.client.sendError(cmd.Type + ": missing data")
		return v, false
	}
	if err := json.Unmarshal(cmd.Data, &v); err != nil {
		c.client.sendError(cmd.Type + ": malformed data")
		return v, false
	}
	return v, true
}

func (c *connection) dispatch(cmd Command) {
	var err error
	switch cmd.Type {
	case CommandView:
		v, ok := decode[viewCommand](c, cmd)
		if !ok {
			return
		}
		switch {
		case v.Bounds != nil:
			err = c.session.SetBounds(*v.Bounds, v.Zoom)
		case v.Center != nil:
			err = c.session.SetView(*v.Center, v.Zoom, v.Width, v.Height)
		default:
			c.client.sendError("view: center or bounds required")
			return
		}
	case CommandSearch:
		err = c.session.SearchArea()
	case CommandFilter:
		v, ok := decode[filterCommand](c, cmd)
		if !ok {
			return
		}
		var category geo.Category
		if v.Category != "" {
			if category, err = geo.ParseCategory(v.Category); err != nil {
				c.client.sendError(err.Error())
				return
			}
		}
		err = c.session.SetFilter(category)
	case CommandClickMarker:
		if v, ok := decode[idCommand](c, cmd); ok {
			err = c.session.ClickMarker(v.ID)
		}
	case CommandClickCluster:
		if v, ok := decode[idCommand](c, cmd); ok {
			err = c.session.ClickCluster(v.ID)
		}
	case CommandClickMap:
		if v, ok := decode[geo.Coordinate](c, cmd); ok {
			err = c.session.ClickMap(v)
		}
	case CommandDistricts:
		if v, ok := decode[districtsCommand](c, cmd); ok {
			err = c.session.ShowDistricts(v.On)
		}
	case CommandClickDistrict:
		if v, ok := decode[districtClickCommand](c, cmd); ok {
			err = c.session.ClickDistrict(v.District)
		}
	case CommandClearSelection:
		err = c.session.ClearSelection()
	case CommandJoinChat:
		if v, ok := decode[chatCommand](c, cmd); ok {
			c.joinChat(v.LocationID)
		}
	case CommandLeaveChat:
		c.leaveChat()
	default:
		c.client.sendError("unknown command " + cmd.Type)
	}
	if err != nil {
		c.client.sendError(err.Error())
	}
}

// joinChat follows locationID's chat room, replacing the previous one.
func (c *connection) joinChat(locationID string) {
	if locationID == "" {
		c.client.sendError("join_chat: location_id required")
		return
	}
	if c.handler.cfg.Chat == nil || c.handler.cfg.Feed == nil {
		c.client.sendError("chat is not available")
		return
	}
	c.leaveChat()

	send := func(msgs []models.ChatMessage) {
		c.client.Enqueue(Message{Type: MessageTypeChat, Data: msgs})
	}
	room, err := c.handler.cfg.Chat.Join(c.client.ctx, c.handler.cfg.Feed, locationID, send)
	if err != nil {
		logging.Ctx(c.client.ctx).Warn().Err(err).Str("location_id", locationID).Msg("Failed to join chat room")
		c.client.sendError("could not load the chat for this location")
		return
	}
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()
	send(room.Messages())
}

func (c *connection) leaveChat() {
	c.mu.Lock()
	room := c.room
	c.room = nil
	c.mu.Unlock()
	if room != nil {
		room.Close()
	}
}
