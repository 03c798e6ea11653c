// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/tomtom215/kampai/internal/logging"
)

type contextKey string

const claimsContextKey contextKey = "claims"

// TokenCookie is read when no Authorization header is present. Browsers
// cannot set headers on websocket upgrades.
const TokenCookie = "kampai_token"

// Middleware attaches access token claims to requests.
type Middleware struct {
	tokens *TokenManager
	// OnUnauthorized writes the 401 response. Defaults to http.Error.
	OnUnauthorized func(w http.ResponseWriter, r *http.Request, msg string)
}

// NewMiddleware validates tokens with tokens.
func NewMiddleware(tokens *TokenManager) *Middleware {
	return &Middleware{
		tokens: tokens,
		OnUnauthorized: func(w http.ResponseWriter, _ *http.Request, msg string) {
			http.Error(w, msg, http.StatusUnauthorized)
		},
	}
}

// Require rejects requests without a valid token.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := extractToken(r)
		if !ok {
			m.OnUnauthorized(w, r, "authentication required")
			return
		}
		claims, err := m.tokens.Validate(raw)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Token validation failed")
			m.OnUnauthorized(w, r, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// Optional attaches claims when a valid token is present and otherwise lets
// the request through anonymously.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw, ok := extractToken(r); ok {
			if claims, err := m.tokens.Validate(raw); err == nil {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, found := strings.Cut(h, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", false
		}
		return token, true
	}
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, c)
}

// ClaimsFromContext returns the claims attached by the middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsContextKey).(*Claims)
	return c, ok && c != nil
}

// UserID returns the signed-in user id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.UserID()
	}
	return ""
}
