// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/kampai/internal/assistant"
	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/geocode"
	"github.com/tomtom215/kampai/internal/logging"
)

type addressResponse struct {
	Address string `json:"address"`
}

type assistantRequest struct {
	History []assistant.Message `json:"history"`
	Input   string              `json:"input"`
}

type assistantResponse struct {
	Messages []assistant.Message `json:"messages"`
	Degraded bool                `json:"degraded"`
}

// writeUpstreamError reports a failed third-party call. Open circuits keep
// their 503, anything else is a bad gateway.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, service string, err error) {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || errors.Is(err, context.Canceled) {
		writeServiceError(w, r, err)
		return
	}
	logging.Ctx(r.Context()).Warn().Err(err).Str("service", service).Msg("Upstream call failed")
	NewResponseWriter(w, r).ExternalServiceError(service, err)
}

func (h *Handler) currentWeather(w http.ResponseWriter, r *http.Request, c geo.Coordinate) {
	if h.deps.Weather == nil {
		writeServiceError(w, r, ErrFeatureDisabled)
		return
	}
	report, err := h.deps.Weather.Current(r.Context(), c)
	if err != nil {
		writeUpstreamError(w, r, "weather", err)
		return
	}
	NewResponseWriter(w, r).Success(report)
}

// Weather returns current conditions at ?lat&lng.
func (h *Handler) Weather(w http.ResponseWriter, r *http.Request) {
	c, err := coordinateQuery(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.currentWeather(w, r, c)
}

// LocationWeather returns current conditions at a location.
func (h *Handler) LocationWeather(w http.ResponseWriter, r *http.Request) {
	detail, err := h.deps.Locations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.currentWeather(w, r, detail.Location.Coordinate())
}

// ReverseGeocode returns the formatted address at ?lat&lng.
func (h *Handler) ReverseGeocode(w http.ResponseWriter, r *http.Request) {
	if h.deps.Geocode == nil {
		writeServiceError(w, r, ErrFeatureDisabled)
		return
	}
	c, err := coordinateQuery(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	addr, err := h.deps.Geocode.AddressAt(r.Context(), c)
	if errors.Is(err, geocode.ErrNoResults) {
		NewResponseWriter(w, r).NotFound("No address found for this point")
		return
	}
	if err != nil {
		writeUpstreamError(w, r, "geocode", err)
		return
	}
	NewResponseWriter(w, r).Success(addressResponse{Address: addr})
}

// AssistantGreeting starts a conversation.
func (h *Handler) AssistantGreeting(w http.ResponseWriter, r *http.Request) {
	if h.deps.Assistant == nil {
		writeServiceError(w, r, ErrFeatureDisabled)
		return
	}
	NewResponseWriter(w, r).Success(assistantResponse{Messages: h.deps.Assistant.NewConversation()})
}

// AssistantReply answers the next user turn. The conversation lives on the
// client, which sends its history with every turn. An upstream failure is
// not an HTTP error: the fallback answer is returned with degraded=true.
func (h *Handler) AssistantReply(w http.ResponseWriter, r *http.Request) {
	if h.deps.Assistant == nil {
		writeServiceError(w, r, ErrFeatureDisabled)
		return
	}
	var in assistantRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	user, bot, err := h.deps.Assistant.Reply(r.Context(), in.History, in.Input)
	if errors.Is(err, assistant.ErrEmptyMessage) {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(assistantResponse{
		Messages: []assistant.Message{user, bot},
		Degraded: err != nil,
	})
}

