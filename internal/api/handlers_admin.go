// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/kampai/internal/audit"
	"github.com/tomtom215/kampai/internal/auth"
	"github.com/tomtom215/kampai/internal/backup"
)

const maxAuditPageSize = 500

func requireAdmin(rw *ResponseWriter, r *http.Request) bool {
	if subject(r).Role != auth.RoleAdmin {
		rw.Error(http.StatusForbidden, ErrCodeForbidden, "admin role required")
		return false
	}
	return true
}

// AuditEvents pages through the audit trail, newest first. Admins only.
//
// Query: type (repeatable), actor_id, owner_id, since and until (RFC 3339),
// limit, offset.
func (h *Handler) AuditEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !requireAdmin(rw, r) {
		return
	}
	if h.deps.Audit == nil {
		writeServiceError(w, r, fmt.Errorf("%w: audit trail", ErrFeatureDisabled))
		return
	}

	q := r.URL.Query()
	filter := audit.QueryFilter{
		ActorID: q.Get("actor_id"),
		OwnerID: q.Get("owner_id"),
		Limit:   min(intQuery(r, "limit", audit.DefaultQueryLimit), maxAuditPageSize),
		Offset:  intQuery(r, "offset", 0),
	}
	for _, t := range q["type"] {
		filter.Types = append(filter.Types, audit.EventType(t))
	}
	for key, dst := range map[string]**time.Time{"since": &filter.StartTime, "until": &filter.EndTime} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeServiceError(w, r, fmt.Errorf("%w: %s must be RFC 3339", errBadQuery, key))
			return
		}
		*dst = &ts
	}

	events, err := h.deps.Audit.Query(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	rw.SuccessWithPagination(events, &PaginationMeta{
		Count:   len(events),
		Offset:  filter.Offset,
		Limit:   filter.Limit,
		HasMore: len(events) == filter.Limit,
	})
}

// backupsEnabled writes 503 when scheduled backups are not configured.
func (h *Handler) backupsEnabled(w http.ResponseWriter, r *http.Request) bool {
	if h.deps.Backups == nil {
		writeServiceError(w, r, fmt.Errorf("%w: backups", ErrFeatureDisabled))
		return false
	}
	return true
}

// ListBackups returns every database backup, newest first, with totals.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !requireAdmin(rw, r) || !h.backupsEnabled(w, r) {
		return
	}
	rw.Success(map[string]any{
		"backups": h.deps.Backups.List(),
		"stats":   h.deps.Backups.Stats(),
	})
}

// CreateBackup takes a manual snapshot. Optional body: {"notes": "..."}.
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !requireAdmin(rw, r) || !h.backupsEnabled(w, r) {
		return
	}
	var in struct {
		Notes string `json:"notes"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &in); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	b, err := h.deps.Backups.Create(r.Context(), backup.TriggerManual, in.Notes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	rw.Created(b)
}

// VerifyBackup re-checks an archive against its checksums.
func (h *Handler) VerifyBackup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !requireAdmin(rw, r) || !h.backupsEnabled(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	err := h.deps.Backups.Verify(id)
	switch {
	case errors.Is(err, backup.ErrNotFound):
		rw.NotFound("backup not found")
	case errors.Is(err, backup.ErrCorrupted):
		rw.Success(map[string]any{"id": id, "valid": false, "error": err.Error()})
	case err != nil:
		writeServiceError(w, r, err)
	default:
		rw.Success(map[string]any{"id": id, "valid": true})
	}
}
