// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/kampai/internal/auth"
	"github.com/tomtom215/kampai/internal/models"
)

const userColumns = `id, username, email, password_hash, role, preferred_activities, bio, avatar_url, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u          models.User
		activities string
		bio        sql.NullString
		avatar     sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &activities, &bio, &avatar, &u.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(activities), &u.PreferredActivities); err != nil {
		return nil, fmt.Errorf("decode preferred activities of %s: %w", u.ID, err)
	}
	if u.PreferredActivities == nil {
		u.PreferredActivities = []string{}
	}
	u.Bio = bio.String
	u.AvatarURL = avatar.String
	return &u, nil
}

func encodeStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CreateUser inserts u. A duplicate email returns auth.ErrEmailTaken.
func (db *DB) CreateUser(ctx context.Context, u models.User) (err error) {
	start := time.Now()
	defer func() { observe("insert", "users", start, err) }()

	activities, err := encodeStrings(u.PreferredActivities)
	if err != nil {
		return fmt.Errorf("encode preferred activities: %w", err)
	}
	_, err = db.conn.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, strings.ToLower(u.Email), u.PasswordHash, u.Role, activities,
		nullString(u.Bio), nullString(u.AvatarURL), u.CreatedAt)
	if err != nil {
		if isUniqueConstraintError(err) {
			return auth.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UserByEmail looks a user up by email, case-insensitively.
func (db *DB) UserByEmail(ctx context.Context, email string) (_ *models.User, err error) {
	start := time.Now()
	defer func() { observe("select", "users", start, err) }()

	u, err := scanUser(db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email)))
	if err != nil {
		return nil, notFound(err, "user", email)
	}
	return u, nil
}

// GetUser looks a user up by id.
func (db *DB) GetUser(ctx context.Context, id string) (_ *models.User, err error) {
	start := time.Now()
	defer func() { observe("select", "users", start, err) }()

	u, err := scanUser(db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

// UpdateProfile applies the set fields of upd and returns the updated user.
func (db *DB) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (_ *models.User, err error) {
	start := time.Now()
	defer func() { observe("update", "users", start, err) }()

	var (
		sets []string
		args []any
	)
	if upd.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *upd.Username)
	}
	if upd.PreferredActivities != nil {
		activities, err := encodeStrings(upd.PreferredActivities)
		if err != nil {
			return nil, fmt.Errorf("encode preferred activities: %w", err)
		}
		sets = append(sets, "preferred_activities = ?")
		args = append(args, activities)
	}
	if upd.Bio != nil {
		sets = append(sets, "bio = ?")
		args = append(args, nullString(*upd.Bio))
	}
	if upd.AvatarURL != nil {
		sets = append(sets, "avatar_url = ?")
		args = append(args, nullString(*upd.AvatarURL))
	}

	if len(sets) > 0 {
		args = append(args, id)
		res, err := db.conn.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
		}
	}
	return db.GetUser(ctx, id)
}

// SearchUsers returns users whose name starts with prefix, ignoring case.
func (db *DB) SearchUsers(ctx context.Context, prefix string, limit int) (_ []models.UserSummary, err error) {
	start := time.Now()
	defer func() { observe("select", "users", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `SELECT id, username FROM users
		WHERE starts_with(lower(username), lower(?))
		ORDER BY username, id LIMIT ?`, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	out := make([]models.UserSummary, 0, limit)
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
