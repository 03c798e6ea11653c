// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package api

import (
	"context"
	"net/http"
	"time"
)

const healthPingTimeout = 2 * time.Second

var startTime = time.Now()

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status            string          `json:"status"`
	Version           string          `json:"version"`
	DatabaseConnected bool            `json:"database_connected"`
	Integrations      map[string]bool `json:"integrations"`
	Uptime            float64         `json:"uptime_seconds"`
}

func (h *Handler) dbConnected(ctx context.Context) bool {
	if h.deps.DB == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	return h.deps.DB.Ping(ctx) == nil
}

// Health reports database connectivity and which optional integrations are
// configured. It always answers 200; see HealthReady for the probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	connected := h.dbConnected(r.Context())
	status := "healthy"
	if !connected {
		status = "degraded"
	}
	NewResponseWriter(w, r).Success(HealthStatus{
		Status:            status,
		Version:           h.deps.Version,
		DatabaseConnected: connected,
		Integrations: map[string]bool{
			"geocode":   h.deps.Geocode != nil,
			"weather":   h.deps.Weather != nil,
			"assistant": h.deps.Assistant != nil,
			"uploads":   h.deps.Media != nil,
		},
		Uptime: time.Since(startTime).Seconds(),
	})
}

// HealthLive answers 200 while the process is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]any{
		"alive":  true,
		"uptime": time.Since(startTime).Seconds(),
	})
}

// HealthReady answers 503 until the database responds.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if !h.dbConnected(r.Context()) {
		NewResponseWriter(w, r).ServiceUnavailable("database is not reachable")
		return
	}
	NewResponseWriter(w, r).Success(map[string]any{"ready": true})
}
