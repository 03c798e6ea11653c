// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package audit

import (
	"context"
	"time"
)

// EventType categorizes an audit event.
type EventType string

const (
	EventTypeSignIn         EventType = "auth.sign_in"
	EventTypeSignOut        EventType = "auth.sign_out"
	EventTypeTokenRefreshed EventType = "auth.token_refreshed"

	EventTypeAuthzDenied EventType = "authz.denied"

	// EventTypeModeration is a write by a user other than the record owner,
	// which the policy only grants to admins.
	EventTypeModeration EventType = "moderation.action"

	// EventTypeSuspiciousCheckIn is a check-in flagged by anomaly detection.
	EventTypeSuspiciousCheckIn EventType = "checkin.suspicious"
)

// Severity is the importance of an event.
type Severity string

const (
	SeverityDebug    Severity = "debug"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var severityOrder = map[Severity]int{
	SeverityDebug:    0,
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityCritical: 3,
}

// Outcome is the result of the audited action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one audit record. OwnerID is the owner of the record acted on,
// when the action targets one.
type Event struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Type        EventType       `json:"type"`
	Severity    Severity        `json:"severity"`
	Outcome     Outcome         `json:"outcome"`
	ActorID     string          `json:"actor_id"`
	ActorRole   string          `json:"actor_role,omitempty"`
	Resource    string          `json:"resource,omitempty"`
	OwnerID     string          `json:"owner_id,omitempty"`
	Action      string          `json:"action"`
	Description string          `json:"description"`
	RequestID   string          `json:"request_id,omitempty"`
}

// Store persists audit events.
type Store interface {
	Save(ctx context.Context, event *Event) error
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
	Count(ctx context.Context, filter QueryFilter) (int64, error)
	// Delete removes events older than the cutoff and returns how many.
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}

// QueryFilter narrows Query and Count. Zero fields match everything.
type QueryFilter struct {
	Types     []EventType `json:"types,omitempty"`
	ActorID   string      `json:"actor_id,omitempty"`
	OwnerID   string      `json:"owner_id,omitempty"`
	StartTime *time.Time  `json:"start_time,omitempty"`
	EndTime   *time.Time  `json:"end_time,omitempty"`
	Limit     int         `json:"limit,omitempty"`
	Offset    int         `json:"offset,omitempty"`
}

// DefaultQueryLimit caps Query when the filter sets no limit.
const DefaultQueryLimit = 100
