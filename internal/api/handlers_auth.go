// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/kampai/internal/auth"
)

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// setTokenCookie mirrors the access token into an HttpOnly cookie so the
// websocket upgrade, which cannot carry headers from a browser, is
// authenticated too.
func setTokenCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearTokenCookie(w http.ResponseWriter, r *http.Request) {
	setTokenCookie(w, r, "", time.Unix(0, 0))
}

// SignUp registers a user and signs them in.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var in auth.SignUpInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	tokens, err := h.deps.Auth.SignUp(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	setTokenCookie(w, r, tokens.AccessToken, tokens.ExpiresAt)
	NewResponseWriter(w, r).Created(tokens)
}

// SignIn checks a password and issues tokens.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var in auth.SignInInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	tokens, err := h.deps.Auth.SignIn(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	setTokenCookie(w, r, tokens.AccessToken, tokens.ExpiresAt)
	NewResponseWriter(w, r).Success(tokens)
}

// Refresh rotates a refresh token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	tokens, err := h.deps.Auth.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	setTokenCookie(w, r, tokens.AccessToken, tokens.ExpiresAt)
	NewResponseWriter(w, r).Success(tokens)
}

// SignOut revokes one refresh token. Unknown tokens are not an error.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.deps.Auth.SignOut(r.Context(), in.RefreshToken); err != nil {
		writeServiceError(w, r, err)
		return
	}
	clearTokenCookie(w, r)
	NewResponseWriter(w, r).NoContent()
}

// SignOutEverywhere revokes every refresh token of the caller.
func (h *Handler) SignOutEverywhere(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Auth.SignOutEverywhere(r.Context(), auth.UserID(r.Context())); err != nil {
		writeServiceError(w, r, err)
		return
	}
	clearTokenCookie(w, r)
	NewResponseWriter(w, r).NoContent()
}

// Me returns the caller's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.deps.Profiles.Get(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(u)
}
