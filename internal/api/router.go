// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package api is the HTTP surface of the server: chi routing, the JSON
// envelope, and handlers over the community services.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/kampai/internal/auth"
	"github.com/tomtom215/kampai/internal/middleware"
)

// RouterConfig holds the CORS and rate limit settings.
type RouterConfig struct {
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool
}

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler *Handler
	auth    *auth.Middleware
	config  RouterConfig
}

// NewRouter creates a router. authMW's OnUnauthorized is replaced so 401s
// use the API envelope.
func NewRouter(handler *Handler, authMW *auth.Middleware, cfg RouterConfig) *Router {
	authMW.OnUnauthorized = func(w http.ResponseWriter, r *http.Request, msg string) {
		NewResponseWriter(w, r).Unauthorized(msg)
	}
	return &Router{handler: handler, auth: authMW, config: cfg}
}

func (router *Router) cors() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   router.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           86400,
	})
}

func (router *Router) rateLimit() func(http.Handler) http.Handler {
	if router.config.RateLimitDisabled || router.config.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		router.config.RateLimitRequests,
		router.config.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			NewResponseWriter(w, r).TooManyRequests("rate limit exceeded")
		}),
	)
}

// authLimit is the stricter limit on sign-in and sign-up.
func (router *Router) authLimit() func(http.Handler) http.Handler {
	if router.config.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			NewResponseWriter(w, r).TooManyRequests("too many authentication attempts")
		}),
	)
}

// Setup builds the route tree.
func (router *Router) Setup() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.cors())
	r.Use(middleware.AccessLog)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/media/{bucket}/{key}", h.ServeMedia)

	// ========================
	// Health Endpoints
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	// ========================
	// Realtime
	// ========================
	// The websocket authenticates itself from the token cookie or query.
	if h.deps.WebSocket != nil {
		r.Handle("/api/v1/ws", h.deps.WebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.rateLimit())
		r.Use(middleware.PrometheusMetrics)
		r.Use(chimiddleware.Compress(5, "application/json"))

		// ========================
		// Authentication
		// ========================
		r.Route("/auth", func(r chi.Router) {
			r.With(router.authLimit()).Post("/signup", h.SignUp)
			r.With(router.authLimit()).Post("/signin", h.SignIn)
			r.Post("/refresh", h.Refresh)
			r.Post("/signout", h.SignOut)
			r.With(router.auth.Require).Post("/signout-all", h.SignOutEverywhere)
			r.With(router.auth.Require).Get("/me", h.Me)
		})

		// ========================
		// Public reads
		// ========================
		r.Group(func(r chi.Router) {
			r.Use(router.auth.Optional)

			r.Get("/locations", h.LocationsInBounds)
			r.Get("/locations/trending", h.TrendingLocations)
			r.Get("/locations/districts", h.DistrictClusters)
			r.Get("/locations/{id}", h.GetLocation)
			r.Get("/locations/{id}/weather", h.LocationWeather)
			r.Get("/locations/{id}/messages", h.ChatHistory)

			r.Get("/camp-logs", h.ListCampLogs)
			r.Get("/likes/{targetID}", h.LikeStatus)
			r.Get("/kampai", h.ActiveKampai)
			r.Get("/activities", h.RecentActivities)
			r.Get("/profiles/{id}", h.GetProfile)

			r.Get("/weather", h.Weather)
			r.Get("/geocode/reverse", h.ReverseGeocode)
		})

		// ========================
		// Authenticated writes
		// ========================
		r.Group(func(r chi.Router) {
			r.Use(router.auth.Require)

			r.Post("/locations", h.CreateLocation)
			r.Post("/locations/{id}/messages", h.SendChatMessage)
			r.Delete("/messages/{id}", h.DeleteChatMessage)

			r.Get("/camp-logs/eligibility", h.CanCheckIn)
			r.Post("/camp-logs", h.CreateCampLog)
			r.Delete("/camp-logs/{id}", h.DeleteCampLog)
			r.Post("/camp-logs/{id}/images", h.AddCampLogImages)
			r.Post("/camp-logs/{id}/comments", h.CreateComment)
			r.Delete("/comments/{id}", h.DeleteComment)

			r.Post("/likes/{targetID}/toggle", h.ToggleLike)

			r.Post("/kampai", h.CreateKampai)
			r.Delete("/kampai/{id}", h.DeleteKampai)

			r.Post("/activities", h.ShareActivity)
			r.Delete("/activities/{id}", h.DeleteActivity)

			r.Get("/notifications", h.Notifications)
			r.Post("/notifications/{id}/read", h.MarkNotificationRead)

			r.Get("/users/search", h.SearchUsers)
			r.Put("/profiles/{id}", h.UpdateProfile)
			r.Post("/profiles/me/avatar", h.UploadAvatar)
			r.Post("/uploads/comment-images", h.UploadCommentImage)

			r.Get("/assistant", h.AssistantGreeting)
			r.Post("/assistant/messages", h.AssistantReply)

			r.Get("/admin/audit", h.AuditEvents)
			r.Get("/admin/backups", h.ListBackups)
			r.Post("/admin/backups", h.CreateBackup)
			r.Post("/admin/backups/{id}/verify", h.VerifyBackup)
		})
	})

	return r
}
