// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/kampai/internal/logging"
)

// DuckDBStore keeps audit events in the audit_events table.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore wraps an open connection; call CreateTable once before use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the table and its indexes if missing.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS audit_events (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			outcome TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			actor_role TEXT,
			resource TEXT,
			owner_id TEXT,
			action TEXT NOT NULL,
			description TEXT NOT NULL,
			request_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_type ON audit_events(type)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_actor_id ON audit_events(actor_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute audit schema statement: %w", err)
		}
	}
	logging.Debug().Msg("Audit events table created/verified")
	return nil
}

// Save implements Store.
func (s *DuckDBStore) Save(ctx context.Context, e *Event) error {
	if e == nil {
		return fmt.Errorf("event cannot be nil")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, timestamp, type, severity, outcome,
			actor_id, actor_role, resource, owner_id,
			action, description, request_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp, string(e.Type), string(e.Severity), string(e.Outcome),
		e.ActorID, nullable(e.ActorRole), nullable(e.Resource), nullable(e.OwnerID),
		e.Action, e.Description, nullable(e.RequestID),
	)
	if err != nil {
		return fmt.Errorf("failed to save audit event: %w", err)
	}
	return nil
}

// Query implements Store, newest first.
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	where, args := buildFilterConditions(filter)
	query := `
		SELECT id, timestamp, type, severity, outcome,
			actor_id, actor_role, resource, owner_id,
			action, description, request_id
		FROM audit_events` + where + ` ORDER BY timestamp DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e                                  Event
			typ, severity, outcome             string
			role, resource, ownerID, requestID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &typ, &severity, &outcome,
			&e.ActorID, &role, &resource, &ownerID,
			&e.Action, &e.Description, &requestID); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Type, e.Severity, e.Outcome = EventType(typ), Severity(severity), Outcome(outcome)
		e.ActorRole, e.Resource, e.OwnerID, e.RequestID = role.String, resource.String, ownerID.String, requestID.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

// Count implements Store.
func (s *DuckDBStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	where, args := buildFilterConditions(filter)
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return count, nil
}

// Delete implements Store.
func (s *DuckDBStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE timestamp < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit events: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	return count, nil
}

func buildFilterConditions(filter QueryFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		conditions = append(conditions, "type IN ("+strings.Join(placeholders, ",")+")")
	}
	if filter.ActorID != "" {
		conditions = append(conditions, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if filter.OwnerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, *filter.StartTime)
	}
	if filter.EndTime != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, *filter.EndTime)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
