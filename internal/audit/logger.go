// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/kampai/internal/auth"
	"github.com/tomtom215/kampai/internal/authz"
	"github.com/tomtom215/kampai/internal/detection"
	"github.com/tomtom215/kampai/internal/logging"
)

// Config tunes the Logger.
type Config struct {
	// LogLevel drops events below this severity.
	LogLevel        Severity
	RetentionDays   int
	CleanupInterval time.Duration
	BufferSize      int
	// LogToStdout also writes each event through zerolog.
	LogToStdout bool
}

// DefaultConfig keeps info and above for 90 days.
func DefaultConfig() Config {
	return Config{
		LogLevel:        SeverityInfo,
		RetentionDays:   90,
		CleanupInterval: 24 * time.Hour,
		BufferSize:      1000,
	}
}

// Logger buffers events and writes them from Serve, so callers on the
// request path never wait on the store. A nil *Logger discards everything.
type Logger struct {
	config Config
	store  Store
	events chan *Event
	now    func() time.Time
}

// NewLogger creates a logger writing to store. Events are buffered until
// Serve runs.
func NewLogger(store Store, config Config) *Logger {
	def := DefaultConfig()
	if config.LogLevel == "" {
		config.LogLevel = def.LogLevel
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = def.RetentionDays
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	return &Logger{
		config: config,
		store:  store,
		events: make(chan *Event, config.BufferSize),
		now:    time.Now,
	}
}

// Log queues event. It never blocks: a full buffer drops the event.
func (l *Logger) Log(event *Event) {
	if l == nil || severityOrder[event.Severity] < severityOrder[l.config.LogLevel] {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}

	select {
	case l.events <- event:
	default:
		logging.Warn().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("Audit event buffer full, dropping event")
	}
}

// Serve writes queued events and enforces retention until ctx ends, then
// flushes what is still buffered.
func (l *Logger) Serve(ctx context.Context) error {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.drain()
			return ctx.Err()
		case event := <-l.events:
			l.write(event)
		case <-ticker.C:
			l.cleanup(ctx)
		}
	}
}

func (l *Logger) String() string { return "audit-logger" }

func (l *Logger) drain() {
	for {
		select {
		case event := <-l.events:
			l.write(event)
		default:
			return
		}
	}
}

func (l *Logger) write(event *Event) {
	if l.config.LogToStdout {
		logging.Info().
			Str("audit_type", string(event.Type)).
			Str("actor_id", event.ActorID).
			Str("owner_id", event.OwnerID).
			Str("outcome", string(event.Outcome)).
			Msg(event.Description)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Save(ctx, event); err != nil {
		logging.Error().Err(err).Str("event_id", event.ID).Msg("Failed to save audit event")
	}
}

func (l *Logger) cleanup(ctx context.Context) {
	cutoff := l.now().AddDate(0, 0, -l.config.RetentionDays)
	count, err := l.store.Delete(ctx, cutoff)
	if err != nil {
		logging.Error().Err(err).Msg("Audit cleanup error")
		return
	}
	if count > 0 {
		logging.Info().Int64("count", count).Msg("Cleaned up old audit events")
	}
}

// Query returns stored events, newest first.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultQueryLimit
	}
	return l.store.Query(ctx, filter)
}

// Count returns how many stored events match filter.
func (l *Logger) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return l.store.Count(ctx, filter)
}

// RecordAuth is an auth.Service subscriber.
func (l *Logger) RecordAuth(e auth.Event) {
	event := &Event{
		Outcome: OutcomeSuccess,
		ActorID: e.UserID,
	}
	switch e.Type {
	case auth.EventSignedIn:
		event.Type, event.Severity, event.Action = EventTypeSignIn, SeverityInfo, "sign_in"
		event.Description = "User signed in"
	case auth.EventSignedOut:
		event.Type, event.Severity, event.Action = EventTypeSignOut, SeverityInfo, "sign_out"
		event.Description = "User signed out"
	case auth.EventTokenRefreshed:
		event.Type, event.Severity, event.Action = EventTypeTokenRefreshed, SeverityDebug, "refresh"
		event.Description = "Session refreshed"
	default:
		return
	}
	l.Log(event)
}

// AuthzDecision implements authz.Auditor. Denials and writes on records
// the caller does not own are recorded; ordinary owner writes are not.
func (l *Logger) AuthzDecision(sub authz.Subject, resource, act, ownerID string, allowed bool) {
	switch {
	case !allowed:
		l.Log(&Event{
			Type:        EventTypeAuthzDenied,
			Severity:    SeverityWarning,
			Outcome:     OutcomeFailure,
			ActorID:     sub.UserID,
			ActorRole:   sub.Role,
			Resource:    resource,
			OwnerID:     ownerID,
			Action:      act,
			Description: fmt.Sprintf("Denied %s on %s", act, resource),
		})
	case ownerID != "" && ownerID != sub.UserID:
		l.Log(&Event{
			Type:        EventTypeModeration,
			Severity:    SeverityWarning,
			Outcome:     OutcomeSuccess,
			ActorID:     sub.UserID,
			ActorRole:   sub.Role,
			Resource:    resource,
			OwnerID:     ownerID,
			Action:      act,
			Description: fmt.Sprintf("%s on %s owned by another user", act, resource),
		})
	}
}

// RecordAlert is a detection.Monitor sink.
func (l *Logger) RecordAlert(a detection.Alert) {
	l.Log(&Event{
		Type:        EventTypeSuspiciousCheckIn,
		Severity:    SeverityWarning,
		Outcome:     OutcomeSuccess,
		ActorID:     a.UserID,
		Resource:    "camp_logs/" + a.CampLogID,
		OwnerID:     a.UserID,
		Action:      string(a.RuleType),
		Description: a.Message,
	})
}
