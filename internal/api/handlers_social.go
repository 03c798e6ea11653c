// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/kampai/internal/activity"
	"github.com/tomtom215/kampai/internal/auth"
	"github.com/tomtom215/kampai/internal/chatroom"
	"github.com/tomtom215/kampai/internal/kampai"
	"github.com/tomtom215/kampai/internal/models"
)

type notificationsResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

// ActiveKampai lists unexpired announcements.
func (h *Handler) ActiveKampai(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Kampai.Active(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(list)
}

// CreateKampai announces the caller at a location.
func (h *Handler) CreateKampai(w http.ResponseWriter, r *http.Request) {
	var in kampai.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	k, err := h.deps.Kampai.Create(r.Context(), subject(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(k)
}

// DeleteKampai withdraws an announcement.
func (h *Handler) DeleteKampai(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Kampai.Delete(r.Context(), subject(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}

// ChatHistory returns the unexpired messages of a location, oldest first.
func (h *Handler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.deps.Chat.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(msgs)
}

// SendChatMessage posts to a location's chat room.
func (h *Handler) SendChatMessage(w http.ResponseWriter, r *http.Request) {
	var in chatroom.SendInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	m, err := h.deps.Chat.Send(r.Context(), subject(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(m)
}

// DeleteChatMessage removes one of the caller's messages.
func (h *Handler) DeleteChatMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Chat.Delete(r.Context(), subject(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}

// Notifications lists the caller's mention notifications.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	list, unread, err := h.deps.Chat.Notifications(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(notificationsResponse{Notifications: list, Unread: unread})
}

// MarkNotificationRead marks one notification read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Chat.MarkRead(r.Context(), subject(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}

// RecentActivities lists the newest unexpired activities.
func (h *Handler) RecentActivities(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.Activities.Recent(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(list)
}

// ShareActivity shares what the caller is doing.
func (h *Handler) ShareActivity(w http.ResponseWriter, r *http.Request) {
	var in activity.ShareInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeServiceError(w, r, err)
		return
	}
	a, err := h.deps.Activities.Share(r.Context(), subject(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(a)
}

// DeleteActivity removes one of the caller's activities.
func (h *Handler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Activities.Delete(r.Context(), subject(r), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}
