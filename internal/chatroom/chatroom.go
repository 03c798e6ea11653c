// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package chatroom is the per-location chat. Messages expire after a few
// hours; mentioning a user leaves them a notification.
package chatroom

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/kampai/internal/authz"
	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/models"
	"github.com/tomtom215/kampai/internal/realtime"
	"github.com/tomtom215/kampai/internal/validation"
)

// MessageLifetime is how long a message stays visible.
const MessageLifetime = 4 * time.Hour

// NotificationMention is the only notification type.
const NotificationMention = "mention"

// ErrEmptyMessage is returned for blank messages.
var ErrEmptyMessage = errors.New("message is empty")

// Store persists messages and notifications.
type Store interface {
	// CreateMessage stores m and its notifications atomically.
	CreateMessage(ctx context.Context, m models.ChatMessage, notes []models.Notification) error
	// ListMessages returns the unexpired messages of a location, oldest first.
	ListMessages(ctx context.Context, locationID string, now time.Time) ([]models.ChatMessage, error)
	GetMessage(ctx context.Context, id string) (*models.ChatMessage, error)
	DeleteMessage(ctx context.Context, id string) error
	// ListNotifications returns userID's notifications newest first.
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// SendInput is a new message. Mentions are user ids.
type SendInput struct {
	Content  string   `json:"content" validate:"max=1000"`
	Mentions []string `json:"mentions,omitempty" validate:"max=10"`
}

// Service is the chat API.
type Service struct {
	store Store
	authz *authz.Enforcer
	feed  realtime.Publisher
	now   func() time.Time
}

// NewService creates a service. feed may be nil.
func NewService(store Store, enforcer *authz.Enforcer, feed realtime.Publisher) *Service {
	return &Service{store: store, authz: enforcer, feed: feed, now: time.Now}
}

// History returns the live messages of a location, oldest first.
func (s *Service) History(ctx context.Context, locationID string) ([]models.ChatMessage, error) {
	msgs, err := s.store.ListMessages(ctx, locationID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return msgs, nil
}

// Send posts a message to a location's room and notifies every mentioned
// user other than the sender.
func (s *Service) Send(ctx context.Context, sub authz.Subject, locationID string, in SendInput) (*models.ChatMessage, error) {
	if err := s.authz.Check(sub, authz.ResourceChatMessages, authz.ActionCreate, ""); err != nil {
		return nil, err
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return nil, ErrEmptyMessage
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	m := models.ChatMessage{
		ID:         uuid.NewString(),
		LocationID: locationID,
		UserID:     sub.UserID,
		Content:    in.Content,
		Mentions:   uniqueMentions(in.Mentions, sub.UserID),
		ExpiresAt:  now.Add(MessageLifetime),
		CreatedAt:  now,
	}
	notes := make([]models.Notification, len(m.Mentions))
	for i, uid := range m.Mentions {
		notes[i] = models.Notification{
			ID:        uuid.NewString(),
			UserID:    uid,
			MessageID: m.ID,
			Type:      NotificationMention,
			CreatedAt: now,
		}
	}

	if err := s.store.CreateMessage(ctx, m, notes); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	logging.Ctx(ctx).Debug().Str("location_id", locationID).Int("mentions", len(notes)).Msg("Chat message sent")
	realtime.Emit(ctx, s.feed, realtime.TableLocationMessages, realtime.EventInsert, m, nil)
	return &m, nil
}

// uniqueMentions drops blanks, duplicates and the sender.
func uniqueMentions(ids []string, sender string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == sender || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Delete removes one of sub's own messages.
func (s *Service) Delete(ctx context.Context, sub authz.Subject, id string) error {
	m, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return fmt.Errorf("get message %s: %w", id, err)
	}
	if err := s.authz.Check(sub, authz.ResourceChatMessages, authz.ActionDelete, m.UserID); err != nil {
		return err
	}
	if err := s.store.DeleteMessage(ctx, id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	realtime.Emit(ctx, s.feed, realtime.TableLocationMessages, realtime.EventDelete, nil, m)
	return nil
}

// Notifications returns the caller's notifications and the unread count.
func (s *Service) Notifications(ctx context.Context, userID string) ([]models.Notification, int, error) {
	if userID == "" {
		return nil, 0, models.ErrUnauthorized
	}
	notes, err := s.store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	unread := 0
	for _, n := range notes {
		if !n.IsRead {
			unread++
		}
	}
	if notes == nil {
		notes = []models.Notification{}
	}
	return notes, unread, nil
}

// MarkRead marks one of sub's notifications as read.
func (s *Service) MarkRead(ctx context.Context, sub authz.Subject, id string) error {
	n, err := s.store.GetNotification(ctx, id)
	if err != nil {
		return fmt.Errorf("get notification %s: %w", id, err)
	}
	if err := s.authz.Check(sub, authz.ResourceNotifications, authz.ActionUpdate, n.UserID); err != nil {
		return err
	}
	if n.IsRead {
		return nil
	}
	return s.store.MarkNotificationRead(ctx, id)
}
