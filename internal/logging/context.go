// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	sessionIDKey contextKey = "map_session"
	userIDKey    contextKey = "user_id"
)

// GenerateRequestID returns a fresh UUID string.
func GenerateRequestID() string {
	return uuid.New().String()
}

// GenerateSessionID returns a short id for map sessions; it only needs to be
// unique among live websocket connections.
func GenerateSessionID() string {
	return uuid.New().String()[:8]
}

// ContextWithRequestID stores the HTTP request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextWithSessionID stores the map session id.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext returns "" when absent.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// ContextWithUserID stores the authenticated user id for log correlation.
func ContextWithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// Ctx returns the global logger enriched with the request, session and user
// ids found in ctx.
//
//	logging.Ctx(ctx).Info().Msg("Location created")
func Ctx(ctx context.Context) *zerolog.Logger {
	c := Logger().With()
	if id := RequestIDFromContext(ctx); id != "" {
		c = c.Str("request_id", id)
	}
	if id := SessionIDFromContext(ctx); id != "" {
		c = c.Str("map_session", id)
	}
	if id, ok := ctx.Value(userIDKey).(string); ok && id != "" {
		c = c.Str("user_id", id)
	}
	l := c.Logger()
	return &l
}

// WithComponent returns a child logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
