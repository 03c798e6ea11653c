// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/kampai/internal/logging"
)

// Migration is one versioned schema change.
type Migration struct {
	Version   int
	Name      string
	SQL       []string
	AppliedAt time.Time
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name VARCHAR NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT current_timestamp
)`

// migrations returns every migration in version order. Never edit an
// applied migration; append a new one.
func migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "initial_schema", SQL: []string{
			`CREATE TABLE users (
				id VARCHAR PRIMARY KEY,
				username VARCHAR NOT NULL,
				email VARCHAR NOT NULL UNIQUE,
				password_hash VARCHAR NOT NULL,
				role VARCHAR NOT NULL DEFAULT 'user',
				preferred_activities VARCHAR NOT NULL DEFAULT '[]',
				bio VARCHAR,
				avatar_url VARCHAR,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE locations (
				id VARCHAR PRIMARY KEY,
				name VARCHAR NOT NULL,
				type VARCHAR NOT NULL CHECK (type IN ('camp', 'hotel', 'spot', 'shop')),
				location VARCHAR NOT NULL,
				latitude DOUBLE NOT NULL CHECK (latitude BETWEEN -90 AND 90),
				longitude DOUBLE NOT NULL CHECK (longitude BETWEEN -180 AND 180),
				district VARCHAR,
				created_by VARCHAR NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX idx_locations_lat_lon ON locations (latitude, longitude)`,
			`CREATE TABLE amenities (
				id VARCHAR PRIMARY KEY,
				location_id VARCHAR NOT NULL UNIQUE,
				has_shower BOOLEAN NOT NULL DEFAULT false,
				has_power BOOLEAN NOT NULL DEFAULT false,
				has_parking BOOLEAN NOT NULL DEFAULT false,
				is_pet_friendly BOOLEAN NOT NULL DEFAULT false,
				has_wifi BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE camp_logs (
				id VARCHAR PRIMARY KEY,
				user_id VARCHAR NOT NULL,
				location_id VARCHAR NOT NULL,
				content VARCHAR,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX idx_camp_logs_user_location ON camp_logs (user_id, location_id, created_at)`,
			`CREATE TABLE camp_log_images (
				id VARCHAR PRIMARY KEY,
				camp_log_id VARCHAR NOT NULL,
				image_url VARCHAR NOT NULL,
				created_by VARCHAR NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE camp_log_comments (
				id VARCHAR PRIMARY KEY,
				camp_log_id VARCHAR NOT NULL,
				user_id VARCHAR NOT NULL,
				content VARCHAR,
				image_url VARCHAR,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE likes (
				target_id VARCHAR NOT NULL,
				user_id VARCHAR NOT NULL,
				created_at TIMESTAMP NOT NULL,
				PRIMARY KEY (target_id, user_id)
			)`,
			`CREATE TABLE kampai_now (
				id VARCHAR PRIMARY KEY,
				location_id VARCHAR NOT NULL,
				user_id VARCHAR NOT NULL,
				is_anonymous BOOLEAN NOT NULL DEFAULT false,
				expires_at TIMESTAMP NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE location_messages (
				id VARCHAR PRIMARY KEY,
				location_id VARCHAR NOT NULL,
				user_id VARCHAR NOT NULL,
				content VARCHAR NOT NULL,
				mentions VARCHAR NOT NULL DEFAULT '[]',
				expires_at TIMESTAMP NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX idx_location_messages_location ON location_messages (location_id, created_at)`,
			`CREATE TABLE notifications (
				id VARCHAR PRIMARY KEY,
				user_id VARCHAR NOT NULL,
				message_id VARCHAR NOT NULL,
				type VARCHAR NOT NULL,
				is_read BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE activities (
				id VARCHAR PRIMARY KEY,
				location_id VARCHAR NOT NULL,
				user_id VARCHAR NOT NULL,
				activity_type VARCHAR NOT NULL CHECK (activity_type IN ('camp', 'travel', 'other')),
				is_anonymous BOOLEAN NOT NULL DEFAULT false,
				expires_at TIMESTAMP NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
		}},
	}
}

// migrate applies every migration newer than the recorded version, each in
// its own transaction.
func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	var current int
	if err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations() {
		if m.Version <= current {
			continue
		}
		err := db.withTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.SQL {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
				}
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name)
			return err
		})
		if err != nil {
			return err
		}
		logging.Info().Int("version", m.Version).Str("name", m.Name).Msg("Applied migration")
	}
	return nil
}

// AppliedMigrations lists the recorded migrations, oldest first.
func (db *DB) AppliedMigrations(ctx context.Context) ([]Migration, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version, name, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	defer rows.Close()

	var out []Migration
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
