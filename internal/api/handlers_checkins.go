// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/kampai/internal/auth"
	"github.com/tomtom215/kampai/internal/checkin"
)

type imagesRequest struct {
	ImageURLs []string `json:"image_urls"`
}

type canCheckInResponse struct {
	Allowed bool `json:"allowed"`
}

// ListCampLogs returns camp logs, optionally filtered by ?user_id.
func (h *Handler) ListCampLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.deps.CheckIns.List(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(logs)
}

// CanCheckIn reports whether the caller may check in at ?location_id now.
func (h *Handler) CanCheckIn(w http.ResponseWriter, r *http.Request) {
	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		writeServiceError(w, r, errBadQuery)
		return
	}
	ok, err := h.deps.CheckIns.CanCheckIn(r.Context(), auth.UserID(r.Context()), locationID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(canCheckInResponse{Allowed: ok})
}

// CreateCampLog checks the caller in.
func (h *Handler) CreateCampLog(w http.ResponseWriter, r *http.Request) {
	var in checkin.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	log, err := h.deps.CheckIns.Create(r.Context(), subject(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(log)
}

// DeleteCampLog removes a camp log and everything hanging off it.
func (h *Handler) DeleteCampLog(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.CheckIns.Delete(r.Context(), subject(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}

// AddCampLogImages attaches already uploaded images to a camp log.
func (h *Handler) AddCampLogImages(w http.ResponseWriter, r *http.Request) {
	var in imagesRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	images, err := h.deps.CheckIns.AddImages(r.Context(), subject(r), chi.URLParam(r, "id"), in.ImageURLs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(images)
}

// CreateComment comments on a camp log.
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var in checkin.CommentInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	c, err := h.deps.CheckIns.AddComment(r.Context(), subject(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(c)
}

// DeleteComment removes one of the caller's comments.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.CheckIns.DeleteComment(r.Context(), subject(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}

// LikeStatus returns the like count of a target and whether the caller
// liked it. Anonymous callers always see liked=false.
func (h *Handler) LikeStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Likes.Status(r.Context(), chi.URLParam(r, "targetID"), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(st)
}

// ToggleLike likes or unlikes a target.
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Likes.Toggle(r.Context(), subject(r), chi.URLParam(r, "targetID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(st)
}
