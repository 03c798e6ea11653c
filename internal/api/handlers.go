// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package api

import (
	"context"
	"net/http"

	"github.com/tomtom215/kampai/internal/activity"
	"github.com/tomtom215/kampai/internal/assistant"
	"github.com/tomtom215/kampai/internal/audit"
	"github.com/tomtom215/kampai/internal/backup"
	"github.com/tomtom215/kampai/internal/auth"
	"github.com/tomtom215/kampai/internal/chatroom"
	"github.com/tomtom215/kampai/internal/checkin"
	"github.com/tomtom215/kampai/internal/geocode"
	"github.com/tomtom215/kampai/internal/kampai"
	"github.com/tomtom215/kampai/internal/likes"
	"github.com/tomtom215/kampai/internal/locations"
	"github.com/tomtom215/kampai/internal/media"
	"github.com/tomtom215/kampai/internal/profiles"
	"github.com/tomtom215/kampai/internal/weather"
)

// Pinger is anything the readiness probe can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services behind the HTTP API. Audit, Backups, Weather,
// Geocode, Assistant, Media, MediaFiles and WebSocket may be nil when not
// configured.
type Deps struct {
	Auth       *auth.Service
	Audit      *audit.Logger
	Backups    *backup.Manager
	Locations  *locations.Service
	CheckIns   *checkin.Service
	Likes      *likes.Service
	Kampai     *kampai.Service
	Chat       *chatroom.Service
	Activities *activity.Service
	Profiles   *profiles.Service
	Media      *media.Service
	MediaFiles *media.MemoryStore
	Weather    *weather.Service
	Geocode    *geocode.Service
	Assistant  *assistant.Client
	DB         Pinger
	WebSocket  http.Handler
	Version    string
}

// Handler holds the HTTP handlers.
type Handler struct {
	deps Deps
}

// NewHandler creates a handler over deps.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}
