// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/kampai/internal/auth"
	"github.com/tomtom215/kampai/internal/locations"
	"github.com/tomtom215/kampai/internal/models"
)

// LocationsInBounds is find_locations_in_bounds over HTTP.
func (h *Handler) LocationsInBounds(w http.ResponseWriter, r *http.Request) {
	b, err := boundsQuery(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	category, err := categoryQuery(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	locs, err := h.deps.Locations.QueryBounds(r.Context(), b, category)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(locs)
}

// CreateLocation adds a location with optional amenities.
func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var in models.CreateLocationInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	loc, err := h.deps.Locations.Create(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(loc)
}

// GetLocation returns a location and its amenities.
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	detail, err := h.deps.Locations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(detail)
}

// TrendingLocations returns one page of the trending ranking.
func (h *Handler) TrendingLocations(w http.ResponseWriter, r *http.Request) {
	category, err := categoryQuery(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	offset := intQuery(r, "offset", 0)
	page, err := h.deps.Locations.Trending(r.Context(), category, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(page, &PaginationMeta{
		Count:   len(page),
		Offset:  offset,
		Limit:   locations.TrendingPageSize,
		HasMore: len(page) == locations.TrendingPageSize,
	})
}

// DistrictClusters is get_district_clusters over HTTP.
func (h *Handler) DistrictClusters(w http.ResponseWriter, r *http.Request) {
	b, err := boundsQuery(r)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	clusters, err := h.deps.Locations.Districts(r.Context(), b)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(clusters)
}
