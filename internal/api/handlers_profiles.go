// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/kampai/internal/media"
	"github.com/tomtom215/kampai/internal/models"
)

// multipartOverhead leaves room for form boundaries and headers around the
// image part.
const multipartOverhead = 64 << 10

type uploadResponse struct {
	URL string `json:"url"`
}

// GetProfile returns a user's public profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.deps.Profiles.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(u)
}

// UpdateProfile edits a profile. Only the owner or an admin may do so.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd models.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeServiceError(w, r, err)
		return
	}
	u, err := h.deps.Profiles.Update(r.Context(), subject(r), chi.URLParam(r, "id"), upd)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(u)
}

// SearchUsers returns mention candidates for ?q.
func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.deps.Profiles.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(users)
}

// UploadAvatar replaces the caller's avatar with the "file" form part.
func (h *Handler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeServiceError(w, r, uploadFormError(err))
		return
	}
	defer func() { _ = file.Close() }()

	u, err := h.deps.Profiles.UploadAvatar(r.Context(), subject(r), header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(u)
}

// UploadCommentImage stores a comment image and returns its public URL.
func (h *Handler) UploadCommentImage(w http.ResponseWriter, r *http.Request) {
	if h.deps.Media == nil {
		writeServiceError(w, r, ErrFeatureDisabled)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeServiceError(w, r, uploadFormError(err))
		return
	}
	defer func() { _ = file.Close() }()

	url, err := h.deps.Media.Upload(r.Context(), media.BucketCommentImages, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(uploadResponse{URL: url})
}

// ServeMedia serves objects held by the in-process media store.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	if h.deps.MediaFiles == nil {
		NewResponseWriter(w, r).NotFound("Media not found")
		return
	}
	body, contentType, ok := h.deps.MediaFiles.Get(chi.URLParam(r, "bucket"), chi.URLParam(r, "key"))
	if !ok {
		NewResponseWriter(w, r).NotFound("Media not found")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(body)
}
