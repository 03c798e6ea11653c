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

	"github.com/goccy/go-json"

	"github.com/tomtom215/kampai/internal/models"
)

// CountLikes counts the likes on targetID.
func (db *DB) CountLikes(ctx context.Context, targetID string) (n int, err error) {
	start := time.Now()
	defer func() { observe("select", "likes", start, err) }()

	err = db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM likes WHERE target_id = ?`, targetID).Scan(&n)
	return n, err
}

// HasLiked reports whether userID likes targetID.
func (db *DB) HasLiked(ctx context.Context, targetID, userID string) (ok bool, err error) {
	start := time.Now()
	defer func() { observe("select", "likes", start, err) }()

	err = db.conn.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM likes WHERE target_id = ? AND user_id = ?)`,
		targetID, userID).Scan(&ok)
	return ok, err
}

// AddLike records a like and reports whether a row was added.
func (db *DB) AddLike(ctx context.Context, targetID, userID string) (_ bool, err error) {
	start := time.Now()
	defer func() { observe("insert", "likes", start, err) }()

	res, err := db.conn.ExecContext(ctx, `INSERT INTO likes (target_id, user_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING`, targetID, userID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("insert like: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RemoveLike deletes a like and reports whether one existed.
func (db *DB) RemoveLike(ctx context.Context, targetID, userID string) (_ bool, err error) {
	start := time.Now()
	defer func() { observe("delete", "likes", start, err) }()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM likes WHERE target_id = ? AND user_id = ?`, targetID, userID)
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const kampaiSelect = `SELECT k.id, k.location_id, k.user_id, k.is_anonymous, k.expires_at, k.created_at,
		u.username, l.name, l.type, l.district
	FROM kampai_now k
	LEFT JOIN users u ON u.id = k.user_id
	LEFT JOIN locations l ON l.id = k.location_id`

// scanRefs scans a row whose last four columns are username and location
// name, type and district.
func scanRefs(row rowScanner, dest ...any) (*models.UserRef, *models.LocationRef, error) {
	var username, name, category, district sql.NullString
	if err := row.Scan(append(dest, &username, &name, &category, &district)...); err != nil {
		return nil, nil, err
	}
	var (
		user *models.UserRef
		loc  *models.LocationRef
	)
	if username.Valid {
		user = &models.UserRef{Username: username.String}
	}
	if name.Valid {
		loc = &models.LocationRef{Name: name.String, Category: category.String, District: district.String}
	}
	return user, loc, nil
}

func scanKampai(row rowScanner) (models.KampaiNow, error) {
	var k models.KampaiNow
	user, loc, err := scanRefs(row, &k.ID, &k.LocationID, &k.UserID, &k.IsAnonymous, &k.ExpiresAt, &k.CreatedAt)
	if err != nil {
		return k, err
	}
	k.User = user
	if loc != nil {
		loc.ID = k.LocationID
		k.Location = loc
	}
	return k, nil
}

// CreateKampaiNow inserts an announcement.
func (db *DB) CreateKampaiNow(ctx context.Context, k models.KampaiNow) (err error) {
	start := time.Now()
	defer func() { observe("insert", "kampai_now", start, err) }()

	_, err = db.conn.ExecContext(ctx, `INSERT INTO kampai_now (id, location_id, user_id, is_anonymous, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`, k.ID, k.LocationID, k.UserID, k.IsAnonymous, k.ExpiresAt, k.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert kampai_now: %w", err)
	}
	return nil
}

// ActiveKampaiNow returns announcements expiring after now, newest first.
func (db *DB) ActiveKampaiNow(ctx context.Context, now time.Time) (_ []models.KampaiNow, err error) {
	start := time.Now()
	defer func() { observe("select", "kampai_now", start, err) }()

	rows, err := db.conn.QueryContext(ctx, kampaiSelect+` WHERE k.expires_at > ? ORDER BY k.created_at DESC, k.id`, now)
	if err != nil {
		return nil, fmt.Errorf("list kampai_now: %w", err)
	}
	defer rows.Close()

	out := make([]models.KampaiNow, 0)
	for rows.Next() {
		k, err := scanKampai(rows)
		if err != nil {
			return nil, fmt.Errorf("scan kampai_now: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// GetKampaiNow returns one announcement.
func (db *DB) GetKampaiNow(ctx context.Context, id string) (_ *models.KampaiNow, err error) {
	start := time.Now()
	defer func() { observe("select", "kampai_now", start, err) }()

	k, err := scanKampai(db.conn.QueryRowContext(ctx, kampaiSelect+` WHERE k.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "kampai_now", id)
	}
	return &k, nil
}

// DeleteKampaiNow removes an announcement.
func (db *DB) DeleteKampaiNow(ctx context.Context, id string) error {
	return db.deleteByID(ctx, "kampai_now", id)
}

// deleteByID deletes one row of table, returning models.ErrNotFound when
// nothing matched. table is always a constant.
func (db *DB) deleteByID(ctx context.Context, table, id string) (err error) {
	start := time.Now()
	defer func() { observe("delete", table, start, err) }()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s: %w", table, id, models.ErrNotFound)
	}
	return nil
}

const messageSelect = `SELECT m.id, m.location_id, m.user_id, m.content, m.mentions, m.expires_at, m.created_at, u.username
	FROM location_messages m LEFT JOIN users u ON u.id = m.user_id`

func scanMessage(row rowScanner) (models.ChatMessage, error) {
	var (
		m        models.ChatMessage
		mentions string
		username sql.NullString
	)
	if err := row.Scan(&m.ID, &m.LocationID, &m.UserID, &m.Content, &mentions, &m.ExpiresAt, &m.CreatedAt, &username); err != nil {
		return m, err
	}
	if err := json.Unmarshal([]byte(mentions), &m.Mentions); err != nil {
		return m, fmt.Errorf("decode mentions of %s: %w", m.ID, err)
	}
	if m.Mentions == nil {
		m.Mentions = []string{}
	}
	if username.Valid {
		m.User = &models.UserRef{Username: username.String}
	}
	return m, nil
}

// CreateMessage stores m and its mention notifications in one transaction.
func (db *DB) CreateMessage(ctx context.Context, m models.ChatMessage, notes []models.Notification) (err error) {
	start := time.Now()
	defer func() { observe("insert", "location_messages", start, err) }()

	mentions, err := encodeStrings(m.Mentions)
	if err != nil {
		return fmt.Errorf("encode mentions: %w", err)
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO location_messages
			(id, location_id, user_id, content, mentions, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.LocationID, m.UserID, m.Content, mentions, m.ExpiresAt, m.CreatedAt); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		for _, n := range notes {
			if _, err := tx.ExecContext(ctx, `INSERT INTO notifications (id, user_id, message_id, type, is_read, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`, n.ID, n.UserID, n.MessageID, n.Type, n.IsRead, n.CreatedAt); err != nil {
				return fmt.Errorf("insert notification: %w", err)
			}
		}
		return nil
	})
}

// ListMessages returns a location's unexpired messages, oldest first.
func (db *DB) ListMessages(ctx context.Context, locationID string, now time.Time) (_ []models.ChatMessage, err error) {
	start := time.Now()
	defer func() { observe("select", "location_messages", start, err) }()

	rows, err := db.conn.QueryContext(ctx, messageSelect+` WHERE m.location_id = ? AND m.expires_at > ?
		ORDER BY m.created_at, m.id`, locationID, now)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]models.ChatMessage, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMessage returns one message.
func (db *DB) GetMessage(ctx context.Context, id string) (_ *models.ChatMessage, err error) {
	start := time.Now()
	defer func() { observe("select", "location_messages", start, err) }()

	m, err := scanMessage(db.conn.QueryRowContext(ctx, messageSelect+` WHERE m.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "message", id)
	}
	return &m, nil
}

// DeleteMessage removes a message and the notifications pointing at it.
func (db *DB) DeleteMessage(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { observe("delete", "location_messages", start, err) }()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE message_id = ?`, id); err != nil {
			return fmt.Errorf("delete message notifications: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM location_messages WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("message %s: %w", id, models.ErrNotFound)
		}
		return nil
	})
}

const notificationSelect = `SELECT n.id, n.user_id, n.message_id, n.type, n.is_read, n.created_at,
		m.id, m.location_id, m.user_id, m.content, m.mentions, m.expires_at, m.created_at
	FROM notifications n LEFT JOIN location_messages m ON m.id = n.message_id`

func scanNotification(row rowScanner) (models.Notification, error) {
	var (
		n                          models.Notification
		msgID, locID, userID, body sql.NullString
		mentions                   sql.NullString
		expires, created           sql.NullTime
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.MessageID, &n.Type, &n.IsRead, &n.CreatedAt,
		&msgID, &locID, &userID, &body, &mentions, &expires, &created); err != nil {
		return n, err
	}
	if msgID.Valid {
		m := &models.ChatMessage{
			ID:         msgID.String,
			LocationID: locID.String,
			UserID:     userID.String,
			Content:    body.String,
			Mentions:   []string{},
			ExpiresAt:  expires.Time,
			CreatedAt:  created.Time,
		}
		if mentions.Valid {
			if err := json.Unmarshal([]byte(mentions.String), &m.Mentions); err != nil {
				return n, fmt.Errorf("decode mentions of %s: %w", m.ID, err)
			}
		}
		n.Message = m
	}
	return n, nil
}

// ListNotifications returns userID's notifications newest first.
func (db *DB) ListNotifications(ctx context.Context, userID string) (_ []models.Notification, err error) {
	start := time.Now()
	defer func() { observe("select", "notifications", start, err) }()

	rows, err := db.conn.QueryContext(ctx, notificationSelect+` WHERE n.user_id = ? ORDER BY n.created_at DESC, n.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]models.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetNotification returns one notification.
func (db *DB) GetNotification(ctx context.Context, id string) (_ *models.Notification, err error) {
	start := time.Now()
	defer func() { observe("select", "notifications", start, err) }()

	n, err := scanNotification(db.conn.QueryRowContext(ctx, notificationSelect+` WHERE n.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "notification", id)
	}
	return &n, nil
}

// MarkNotificationRead sets is_read.
func (db *DB) MarkNotificationRead(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { observe("update", "notifications", start, err) }()

	res, err := db.conn.ExecContext(ctx, `UPDATE notifications SET is_read = true WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("notification %s: %w", id, models.ErrNotFound)
	}
	return nil
}

const activitySelect = `SELECT a.id, a.location_id, a.user_id, a.activity_type, a.is_anonymous, a.expires_at, a.created_at,
		u.username, l.name, l.type, l.district
	FROM activities a
	LEFT JOIN users u ON u.id = a.user_id
	LEFT JOIN locations l ON l.id = a.location_id`

func scanActivity(row rowScanner) (models.Activity, error) {
	var (
		a    models.Activity
		kind string
	)
	user, loc, err := scanRefs(row, &a.ID, &a.LocationID, &a.UserID, &kind, &a.IsAnonymous, &a.ExpiresAt, &a.CreatedAt)
	if err != nil {
		return a, err
	}
	a.ActivityType = models.ActivityType(kind)
	a.User = user
	if loc != nil {
		loc.ID = a.LocationID
		a.Location = loc
	}
	return a, nil
}

// CreateActivity inserts a shared activity.
func (db *DB) CreateActivity(ctx context.Context, a models.Activity) (err error) {
	start := time.Now()
	defer func() { observe("insert", "activities", start, err) }()

	_, err = db.conn.ExecContext(ctx, `INSERT INTO activities (id, location_id, user_id, activity_type, is_anonymous, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.LocationID, a.UserID, string(a.ActivityType), a.IsAnonymous, a.ExpiresAt, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// RecentActivities returns up to limit unexpired activities, newest first.
func (db *DB) RecentActivities(ctx context.Context, now time.Time, limit int) (_ []models.Activity, err error) {
	start := time.Now()
	defer func() { observe("select", "activities", start, err) }()

	rows, err := db.conn.QueryContext(ctx, activitySelect+` WHERE a.expires_at > ?
		ORDER BY a.created_at DESC, a.id LIMIT ?`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	out := make([]models.Activity, 0, limit)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetActivity returns one activity.
func (db *DB) GetActivity(ctx context.Context, id string) (_ *models.Activity, err error) {
	start := time.Now()
	defer func() { observe("select", "activities", start, err) }()

	a, err := scanActivity(db.conn.QueryRowContext(ctx, activitySelect+` WHERE a.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "activity", id)
	}
	return &a, nil
}

// DeleteActivity removes an activity.
func (db *DB) DeleteActivity(ctx context.Context, id string) error {
	return db.deleteByID(ctx, "activities", id)
}
