// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/kampai/internal/assistant"
	"github.com/tomtom215/kampai/internal/audit"
	"github.com/tomtom215/kampai/internal/backup"
	"github.com/tomtom215/kampai/internal/config"
	"github.com/tomtom215/kampai/internal/database"
	"github.com/tomtom215/kampai/internal/detection"
	"github.com/tomtom215/kampai/internal/geocode"
	"github.com/tomtom215/kampai/internal/kvstore"
	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/media"
	"github.com/tomtom215/kampai/internal/realtime"
	"github.com/tomtom215/kampai/internal/weather"
)

// stores holds the Badger handles; the session store and the geocode cache
// share one when their paths match.
type stores struct {
	sessions *badger.DB
	geocode  *badger.DB
}

func openStores(cfg *config.Config) (*stores, error) {
	sessions, err := kvstore.Open(cfg.Security.SessionStorePath)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	s := &stores{sessions: sessions, geocode: sessions}
	if cfg.Geocode.Enabled() && cfg.Geocode.CachePath != cfg.Security.SessionStorePath {
		s.geocode, err = kvstore.Open(cfg.Geocode.CachePath)
		if err != nil {
			_ = sessions.Close()
			return nil, fmt.Errorf("geocode cache: %w", err)
		}
	}
	return s, nil
}

func (s *stores) Close() {
	if s.geocode != s.sessions {
		if err := s.geocode.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing geocode cache")
		}
	}
	if err := s.sessions.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing session store")
	}
}

// jwtSecret returns the configured secret, or a random one outside
// production. Tokens signed with a random secret die with the process.
func jwtSecret(cfg *config.Config) (string, error) {
	if cfg.Security.JWTSecret != "" {
		return cfg.Security.JWTSecret, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	logging.Warn().Msg("JWT_SECRET not set: using an ephemeral secret, sessions will not survive a restart")
	return hex.EncodeToString(buf), nil
}

// realtimeFeed is the change feed plus the embedded NATS server that may
// back it.
type realtimeFeed struct {
	*realtime.Feed
	embedded *realtime.EmbeddedServer
}

func newRealtimeFeed(cfg config.RealtimeConfig) (*realtimeFeed, error) {
	if cfg.Backend != "nats" {
		logging.Info().Msg("Realtime feed: in-process")
		return &realtimeFeed{Feed: realtime.NewMemoryFeed()}, nil
	}

	rf := &realtimeFeed{}
	url := cfg.NATSURL
	if cfg.EmbeddedServer {
		srv, err := realtime.StartEmbeddedServer(cfg.EmbeddedHost, cfg.EmbeddedPort)
		if err != nil {
			return nil, fmt.Errorf("start embedded nats: %w", err)
		}
		rf.embedded = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	feed, err := realtime.NewNATSFeed(realtime.NATSConfig{
		URL:           url,
		MaxReconnects: cfg.MaxReconnects,
		ReconnectWait: cfg.ReconnectWait,
		CloseTimeout:  5 * time.Second,
	})
	if err != nil {
		rf.shutdownEmbedded()
		return nil, fmt.Errorf("connect nats feed: %w", err)
	}
	rf.Feed = feed
	logging.Info().Str("url", url).Msg("Realtime feed: NATS")
	return rf, nil
}

func (rf *realtimeFeed) Close() {
	if err := rf.Feed.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing realtime feed")
	}
	rf.shutdownEmbedded()
}

func (rf *realtimeFeed) shutdownEmbedded() {
	if rf.embedded == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rf.embedded.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("Error shutting down embedded NATS server")
	}
}

// newMedia builds the upload service. files is set only for the in-memory
// backend, whose objects the API serves itself.
func newMedia(ctx context.Context, cfg *config.Config) (*media.Service, *media.MemoryStore, error) {
	if cfg.Storage.Backend == "s3" {
		store, err := media.NewS3Store(ctx, media.S3Config{
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
			BucketPrefix:    cfg.Storage.BucketPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		logging.Info().Str("region", cfg.Storage.Region).Msg("Image storage: S3")
		return media.NewService(store), nil, nil
	}

	files := media.NewMemoryStore(strings.TrimRight(cfg.Server.PublicURL, "/") + "/media")
	logging.Warn().Msg("Image storage: in-memory, uploads are lost on restart")
	return media.NewService(files), files, nil
}

func newWeather(cfg config.WeatherConfig) *weather.Service {
	if !cfg.Enabled() {
		logging.Info().Msg("Weather disabled (OPENWEATHER_API_KEY not set)")
		return nil
	}
	return weather.NewService(weather.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		TTL:     cfg.TTL,
		Timeout: cfg.Timeout,
	})
}

func newGeocode(cfg config.GeocodeConfig, db *badger.DB) *geocode.Service {
	if !cfg.Enabled() {
		logging.Info().Msg("Reverse geocoding disabled (GOOGLE_MAPS_API_KEY not set)")
		return nil
	}
	client := geocode.NewGoogleClient(geocode.GoogleConfig{
		APIKey:   cfg.APIKey,
		BaseURL:  cfg.BaseURL,
		Language: cfg.Language,
		Timeout:  cfg.Timeout,
	})
	return geocode.NewService(geocode.NewCache(db, cfg.MaxEntries, cfg.MaxAge), client)
}

func newAssistant(cfg config.AssistantConfig) *assistant.Client {
	if !cfg.Enabled() {
		logging.Info().Msg("Assistant disabled (OPENAI_API_KEY not set)")
		return nil
	}
	return assistant.NewClient(assistant.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	})
}

// newAuditLogger creates the audit table and logger, or returns nil when the
// trail is disabled.
func newAuditLogger(ctx context.Context, cfg config.AuditConfig, db *database.DB) (*audit.Logger, error) {
	if !cfg.Enabled {
		logging.Info().Msg("Audit trail disabled (AUDIT_ENABLED=false)")
		return nil, nil
	}
	store := audit.NewDuckDBStore(db.Conn())
	if err := store.CreateTable(ctx); err != nil {
		return nil, err
	}
	logging.Info().Int("retention_days", cfg.RetentionDays).Msg("Audit trail enabled")
	return audit.NewLogger(store, audit.Config{
		LogLevel:      audit.Severity(cfg.Level),
		RetentionDays: cfg.RetentionDays,
		BufferSize:    cfg.BufferSize,
		LogToStdout:   cfg.LogToStdout,
	}), nil
}

// newBackupManager returns nil when scheduled backups are disabled.
func newBackupManager(cfg config.BackupConfig, db *database.DB) (*backup.Manager, error) {
	if !cfg.Enabled {
		logging.Info().Msg("Scheduled backups disabled (BACKUP_ENABLED=false)")
		return nil, nil
	}
	m, err := backup.NewManager(backupConfig(cfg), db.Conn())
	if err != nil {
		return nil, err
	}
	logging.Info().Str("dir", cfg.Dir).Dur("interval", cfg.Interval).Msg("Scheduled backups enabled")
	return m, nil
}

func backupConfig(cfg config.BackupConfig) backup.Config {
	return backup.Config{
		Dir:        cfg.Dir,
		Interval:   cfg.Interval,
		AppVersion: version,
		Retention: backup.RetentionPolicy{
			MinCount:         cfg.MinCount,
			MaxCount:         cfg.MaxCount,
			MaxAgeDays:       cfg.MaxAgeDays,
			KeepDailyForDays: cfg.KeepDailyForDays,
		},
	}
}

// newCheckInMonitor returns nil when detection is disabled. Alerts go to the
// audit trail when it is enabled.
func newCheckInMonitor(cfg config.DetectionConfig, feed *realtime.Feed, db *database.DB, auditLog *audit.Logger) *detection.Monitor {
	if !cfg.Enabled {
		logging.Info().Msg("Check-in anomaly detection disabled (DETECTION_ENABLED=false)")
		return nil
	}
	detector := detection.NewImpossibleTravelDetector(db, detection.ImpossibleTravelConfig{
		MaxSpeedKmH:   cfg.MaxSpeedKmH,
		MinDistanceKm: cfg.MinDistanceKm,
	})
	var sinks []func(detection.Alert)
	if auditLog != nil {
		sinks = append(sinks, auditLog.RecordAlert)
	}
	return detection.NewMonitor(feed, db, detector, sinks...)
}
