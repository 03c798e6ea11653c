// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/kampai/internal/models"
)

const campLogSelect = `SELECT c.id, c.user_id, c.location_id, c.content, c.created_at, c.updated_at,
		l.name, l.type, l.district, u.username
	FROM camp_logs c
	LEFT JOIN locations l ON l.id = c.location_id
	LEFT JOIN users u ON u.id = c.user_id`

func scanCampLog(row rowScanner) (models.CampLog, error) {
	var (
		c                      models.CampLog
		content                sql.NullString
		locName, locType, dist sql.NullString
		username               sql.NullString
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.LocationID, &content, &c.CreatedAt, &c.UpdatedAt,
		&locName, &locType, &dist, &username); err != nil {
		return c, err
	}
	c.Content = content.String
	if locName.Valid {
		c.Location = &models.LocationRef{ID: c.LocationID, Name: locName.String, Category: locType.String, District: dist.String}
	}
	if username.Valid {
		c.User = &models.UserRef{Username: username.String}
	}
	c.Images = []models.CampLogImage{}
	c.Comments = []models.CampLogComment{}
	return c, nil
}

// ListCampLogs returns camp logs newest first with their images and
// comments. An empty userID lists everyone's.
func (db *DB) ListCampLogs(ctx context.Context, userID string) (_ []models.CampLog, err error) {
	start := time.Now()
	defer func() { observe("select", "camp_logs", start, err) }()

	query := campLogSelect
	var args []any
	if userID != "" {
		query += ` WHERE c.user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY c.created_at DESC, c.id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list camp logs: %w", err)
	}
	logs := make([]models.CampLog, 0)
	for rows.Next() {
		c, err := scanCampLog(rows)
		if err != nil {
			closeQuietly(rows)
			return nil, fmt.Errorf("scan camp log: %w", err)
		}
		logs = append(logs, c)
	}
	if err := rows.Err(); err != nil {
		closeQuietly(rows)
		return nil, err
	}
	closeQuietly(rows)

	if err := db.attachChildren(ctx, logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// GetCampLog returns one camp log with its images and comments.
func (db *DB) GetCampLog(ctx context.Context, id string) (_ *models.CampLog, err error) {
	start := time.Now()
	defer func() { observe("select", "camp_logs", start, err) }()

	c, err := scanCampLog(db.conn.QueryRowContext(ctx, campLogSelect+` WHERE c.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "camp log", id)
	}
	logs := []models.CampLog{c}
	if err := db.attachChildren(ctx, logs); err != nil {
		return nil, err
	}
	return &logs[0], nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// attachChildren loads the images and comments of logs in two queries.
func (db *DB) attachChildren(ctx context.Context, logs []models.CampLog) error {
	if len(logs) == 0 {
		return nil
	}
	index := make(map[string]int, len(logs))
	args := make([]any, len(logs))
	for i, l := range logs {
		index[l.ID] = i
		args[i] = l.ID
	}
	in := placeholders(len(logs))

	rows, err := db.conn.QueryContext(ctx, `SELECT id, camp_log_id, image_url, created_by, created_at
		FROM camp_log_images WHERE camp_log_id IN (`+in+`) ORDER BY created_at, id`, args...)
	if err != nil {
		return fmt.Errorf("load camp log images: %w", err)
	}
	for rows.Next() {
		var img models.CampLogImage
		if err := rows.Scan(&img.ID, &img.CampLogID, &img.ImageURL, &img.CreatedBy, &img.CreatedAt); err != nil {
			closeQuietly(rows)
			return fmt.Errorf("scan camp log image: %w", err)
		}
		i := index[img.CampLogID]
		logs[i].Images = append(logs[i].Images, img)
	}
	if err := rows.Err(); err != nil {
		closeQuietly(rows)
		return err
	}
	closeQuietly(rows)

	rows, err = db.conn.QueryContext(ctx, `SELECT m.id, m.camp_log_id, m.user_id, m.content, m.image_url, m.created_at, u.username
		FROM camp_log_comments m LEFT JOIN users u ON u.id = m.user_id
		WHERE m.camp_log_id IN (`+in+`) ORDER BY m.created_at, m.id`, args...)
	if err != nil {
		return fmt.Errorf("load camp log comments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return fmt.Errorf("scan comment: %w", err)
		}
		i := index[c.CampLogID]
		logs[i].Comments = append(logs[i].Comments, c)
	}
	return rows.Err()
}

func scanComment(row rowScanner) (models.CampLogComment, error) {
	var (
		c                 models.CampLogComment
		content, imageURL sql.NullString
		username          sql.NullString
	)
	if err := row.Scan(&c.ID, &c.CampLogID, &c.UserID, &content, &imageURL, &c.CreatedAt, &username); err != nil {
		return c, err
	}
	c.Content = content.String
	c.ImageURL = imageURL.String
	if username.Valid {
		c.User = &models.UserRef{Username: username.String}
	}
	return c, nil
}

// LastCheckIn returns the newest check-in of userID at locationID at or
// after since.
func (db *DB) LastCheckIn(ctx context.Context, userID, locationID string, since time.Time) (_ time.Time, _ bool, err error) {
	start := time.Now()
	defer func() { observe("select", "camp_logs", start, err) }()

	var last sql.NullTime
	err = db.conn.QueryRowContext(ctx, `SELECT MAX(created_at) FROM camp_logs
		WHERE user_id = ? AND location_id = ? AND created_at >= ?`, userID, locationID, since).Scan(&last)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last check-in: %w", err)
	}
	return last.Time, last.Valid, nil
}

// PreviousCheckIn returns the newest check-in of userID created at or
// before before, other than excludeID, with its location's position. It
// returns nil when there is none.
func (db *DB) PreviousCheckIn(ctx context.Context, userID string, before time.Time, excludeID string) (_ *models.CheckInPosition, err error) {
	start := time.Now()
	defer func() { observe("select", "camp_logs", start, err) }()

	var p models.CheckInPosition
	err = db.conn.QueryRowContext(ctx, `SELECT c.id, c.user_id, c.location_id, l.latitude, l.longitude, c.created_at
		FROM camp_logs c JOIN locations l ON l.id = c.location_id
		WHERE c.user_id = ? AND c.created_at <= ? AND c.id <> ?
		ORDER BY c.created_at DESC LIMIT 1`, userID, before, excludeID).
		Scan(&p.CampLogID, &p.UserID, &p.LocationID, &p.Latitude, &p.Longitude, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("previous check-in: %w", err)
	}
	return &p, nil
}

// CreateCampLog inserts a camp log and any images it carries in one
// transaction. When since is set and the user already has a check-in at the
// location created after since, nothing is written and
// models.ErrCheckInTooSoon is returned.
func (db *DB) CreateCampLog(ctx context.Context, log models.CampLog, since time.Time) (err error) {
	start := time.Now()
	defer func() { observe("insert", "camp_logs", start, err) }()

	// DuckDB appends never conflict, so the check and insert are serialized here.
	db.checkInMu.Lock()
	defer db.checkInMu.Unlock()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if !since.IsZero() {
			var recent int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM camp_logs
				WHERE user_id = ? AND location_id = ? AND created_at > ?`,
				log.UserID, log.LocationID, since).Scan(&recent); err != nil {
				return fmt.Errorf("recent check-ins: %w", err)
			}
			if recent > 0 {
				return models.ErrCheckInTooSoon
			}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO camp_logs (id, user_id, location_id, content, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			log.ID, log.UserID, log.LocationID, nullString(log.Content), log.CreatedAt, log.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert camp log: %w", err)
		}
		return insertImages(ctx, tx, log.Images)
	})
}

func insertImages(ctx context.Context, tx *sql.Tx, images []models.CampLogImage) error {
	for _, img := range images {
		if _, err := tx.ExecContext(ctx, `INSERT INTO camp_log_images (id, camp_log_id, image_url, created_by, created_at)
			VALUES (?, ?, ?, ?, ?)`, img.ID, img.CampLogID, img.ImageURL, img.CreatedBy, img.CreatedAt); err != nil {
			return fmt.Errorf("insert camp log image: %w", err)
		}
	}
	return nil
}

// AddCampLogImages attaches images to existing camp logs.
func (db *DB) AddCampLogImages(ctx context.Context, images []models.CampLogImage) (err error) {
	start := time.Now()
	defer func() { observe("insert", "camp_log_images", start, err) }()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		return insertImages(ctx, tx, images)
	})
}

// DeleteCampLog removes a camp log with its images, comments and likes.
func (db *DB) DeleteCampLog(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { observe("delete", "camp_logs", start, err) }()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM camp_logs WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete camp log: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("camp log %s: %w", id, models.ErrNotFound)
		}
		for _, stmt := range []string{
			`DELETE FROM likes WHERE target_id IN (SELECT id FROM camp_log_comments WHERE camp_log_id = ?)`,
			`DELETE FROM camp_log_comments WHERE camp_log_id = ?`,
			`DELETE FROM camp_log_images WHERE camp_log_id = ?`,
			`DELETE FROM likes WHERE target_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("delete camp log children: %w", err)
			}
		}
		return nil
	})
}

// CreateComment inserts a comment.
func (db *DB) CreateComment(ctx context.Context, c models.CampLogComment) (err error) {
	start := time.Now()
	defer func() { observe("insert", "camp_log_comments", start, err) }()

	_, err = db.conn.ExecContext(ctx, `INSERT INTO camp_log_comments (id, camp_log_id, user_id, content, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.CampLogID, c.UserID, nullString(c.Content), nullString(c.ImageURL), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// GetComment returns one comment.
func (db *DB) GetComment(ctx context.Context, id string) (_ *models.CampLogComment, err error) {
	start := time.Now()
	defer func() { observe("select", "camp_log_comments", start, err) }()

	c, err := scanComment(db.conn.QueryRowContext(ctx, `SELECT m.id, m.camp_log_id, m.user_id, m.content, m.image_url, m.created_at, u.username
		FROM camp_log_comments m LEFT JOIN users u ON u.id = m.user_id WHERE m.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "comment", id)
	}
	return &c, nil
}

// DeleteComment removes a comment and its likes.
func (db *DB) DeleteComment(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { observe("delete", "camp_log_comments", start, err) }()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM camp_log_comments WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("comment %s: %w", id, models.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM likes WHERE target_id = ?`, id); err != nil {
			return fmt.Errorf("delete comment likes: %w", err)
		}
		return nil
	})
}
