// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key prefixes in the Badger keyspace.
const (
	refreshKeyPrefix     = "refresh:"
	refreshUserKeyPrefix = "refresh_user:"
)

var (
	// ErrSessionNotFound is returned for unknown or revoked refresh tokens.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned for refresh tokens past their expiry.
	ErrSessionExpired = errors.New("session expired")
)

// RefreshSession is the server-side record behind a refresh token.
type RefreshSession struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore keeps refresh sessions in Badger. Entries carry a Badger TTL
// so expired sessions disappear without a sweep.
type SessionStore struct {
	db  *badger.DB
	now func() time.Time
}

// NewSessionStore uses db.
func NewSessionStore(db *badger.DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Create stores a new session for userID valid for ttl.
func (s *SessionStore) Create(_ context.Context, userID string, ttl time.Duration) (*RefreshSession, error) {
	token, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &RefreshSession{Token: token, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(badger.NewEntry([]byte(refreshKeyPrefix+token), data).WithTTL(ttl)); err != nil {
			return fmt.Errorf("set session: %w", err)
		}
		userKey := []byte(refreshUserKeyPrefix + userID + ":" + token)
		if err := txn.SetEntry(badger.NewEntry(userKey, nil).WithTTL(ttl)); err != nil {
			return fmt.Errorf("set user mapping: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the session behind token.
func (s *SessionStore) Get(_ context.Context, token string) (*RefreshSession, error) {
	var sess RefreshSession
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(refreshKeyPrefix + token))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		})
	})
	if err != nil {
		return nil, err
	}
	sess.Token = token
	if !s.now().Before(sess.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	return &sess, nil
}

// Delete revokes token. Unknown tokens are ignored.
func (s *SessionStore) Delete(_ context.Context, token string) error {
	var userID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(refreshKeyPrefix + token))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var sess RefreshSession
			if err := json.Unmarshal(val, &sess); err != nil {
				return err
			}
			userID = sess.UserID
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(refreshKeyPrefix + token)); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		if userID != "" {
			if err := txn.Delete([]byte(refreshUserKeyPrefix + userID + ":" + token)); err != nil {
				return fmt.Errorf("delete user mapping: %w", err)
			}
		}
		return nil
	})
}

// DeleteByUser revokes every session of userID and returns how many were
// removed.
func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) (int, error) {
	var tokens []string
	prefix := []byte(refreshUserKeyPrefix + userID + ":")
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			tokens = append(tokens, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}

	n := 0
	for _, token := range tokens {
		if err := s.Delete(ctx, token); err != nil {
			continue
		}
		n++
	}
	return n, nil
}
