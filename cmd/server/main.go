// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/kampai/internal/activity"
	"github.com/tomtom215/kampai/internal/api"
	"github.com/tomtom215/kampai/internal/auth"
	"github.com/tomtom215/kampai/internal/authz"
	"github.com/tomtom215/kampai/internal/chatroom"
	"github.com/tomtom215/kampai/internal/checkin"
	"github.com/tomtom215/kampai/internal/cluster"
	"github.com/tomtom215/kampai/internal/config"
	"github.com/tomtom215/kampai/internal/database"
	"github.com/tomtom215/kampai/internal/kampai"
	"github.com/tomtom215/kampai/internal/likes"
	"github.com/tomtom215/kampai/internal/locations"
	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/mapview"
	"github.com/tomtom215/kampai/internal/profiles"
	"github.com/tomtom215/kampai/internal/supervisor"
	"github.com/tomtom215/kampai/internal/supervisor/services"
	ws "github.com/tomtom215/kampai/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Str("realtime", cfg.Realtime.Backend).
		Str("storage", cfg.Storage.Backend).
		Msg("Starting Kampai with supervisor tree")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	kv, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	enforcer, err := authz.NewEnforcer(cfg.Security.CasbinPolicyPath)
	if err != nil {
		return fmt.Errorf("initialize authorization: %w", err)
	}

	secret, err := jwtSecret(cfg)
	if err != nil {
		return err
	}
	authSvc, err := auth.NewService(auth.Config{
		Secret:      secret,
		AccessTTL:   cfg.Security.AccessTTL,
		RefreshTTL:  cfg.Security.RefreshTTL,
		BcryptCost:  cfg.Security.BcryptCost,
		AdminEmails: cfg.Security.AdminEmails,
	}, db, auth.NewSessionStore(kv.sessions))
	if err != nil {
		return fmt.Errorf("initialize authentication: %w", err)
	}

	auditLog, err := newAuditLogger(ctx, cfg.Audit, db)
	if err != nil {
		return fmt.Errorf("initialize audit trail: %w", err)
	}
	if auditLog != nil {
		enforcer.SetAuditor(auditLog)
		authSvc.Subscribe(auditLog.RecordAuth)
	}

	backups, err := newBackupManager(cfg.Backup, db)
	if err != nil {
		return fmt.Errorf("initialize backups: %w", err)
	}

	feed, err := newRealtimeFeed(cfg.Realtime)
	if err != nil {
		return err
	}
	defer feed.Close()

	uploads, files, err := newMedia(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize image storage: %w", err)
	}

	locationSvc := locations.NewService(db, feed.Feed)
	chatSvc := chatroom.NewService(db, enforcer, feed.Feed)
	kampaiSvc := kampai.NewService(db, enforcer, feed.Feed, kampai.Config{
		Cooldown: cfg.Community.KampaiCooldown,
		Lifetime: cfg.Community.KampaiLifetime,
	})

	clusterer := cluster.New()
	clusterer.GridSize = cfg.Map.GridSize
	clusterer.MaxZoom = cfg.Map.MaxZoom

	hub := ws.NewHub()
	wsHandler := ws.NewHandler(ws.HandlerConfig{
		Hub:       hub,
		Tokens:    authSvc.Tokens(),
		Locations: locationSvc,
		Chat:      chatSvc,
		Feed:      feed.Feed,
		Session: mapview.Config{
			Width:         cfg.Map.Width,
			Height:        cfg.Map.Height,
			FetchDelay:    cfg.Map.FetchDelay,
			FetchTimeout:  cfg.Map.FetchTimeout,
			DistrictDelay: cfg.Map.DistrictDelay,
			Clusterer:     clusterer,
		},
		MessageRate:    cfg.Community.WSMessageRate,
		MessageBurst:   cfg.Community.WSMessageBurst,
		AllowedOrigins: cfg.Security.CORSOrigins,
	})

	handler := api.NewHandler(api.Deps{
		Auth:       authSvc,
		Audit:      auditLog,
		Backups:    backups,
		Locations:  locationSvc,
		CheckIns:   checkin.NewService(db, enforcer, feed.Feed),
		Likes:      likes.NewService(db, enforcer, feed.Feed),
		Kampai:     kampaiSvc,
		Chat:       chatSvc,
		Activities: activity.NewService(db, enforcer, feed.Feed),
		Profiles:   profiles.NewService(db, enforcer, uploads),
		Media:      uploads,
		MediaFiles: files,
		Weather:    newWeather(cfg.Weather),
		Geocode:    newGeocode(cfg.Geocode, kv.geocode),
		Assistant:  newAssistant(cfg.Assistant),
		DB:         db,
		WebSocket:  wsHandler,
		Version:    version,
	})

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}
	router := api.NewRouter(handler, auth.NewMiddleware(authSvc.Tokens()), api.RouterConfig{
		CORSOrigins:       cfg.Security.CORSOrigins,
		RateLimitRequests: cfg.Security.RateLimitReqs,
		RateLimitWindow:   cfg.Security.RateLimitWindow,
		RateLimitDisabled: cfg.Security.RateLimitDisabled,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeCfg)
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	if auditLog != nil {
		tree.AddDataService(auditLog)
	}
	if backups != nil {
		tree.AddDataService(backups)
	}
	if monitor := newCheckInMonitor(cfg.Detection, feed.Feed, db, auditLog); monitor != nil {
		tree.AddDataService(monitor)
	}
	tree.AddRealtimeService(hub)
	tree.AddRealtimeService(kampai.NewPoller(kampaiSvc, cfg.Community.KampaiPollInterval, hub.BroadcastKampai))
	tree.AddRealtimeService(services.NewSignOutService(authSvc, hub))
	tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	serveErr := <-errCh
	if errors.Is(serveErr, context.Canceled) {
		serveErr = nil
	} else if serveErr != nil {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return serveErr
}
