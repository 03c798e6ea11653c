// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package activity shares short-lived "I am here" statuses on the timeline.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/kampai/internal/authz"
	"github.com/tomtom215/kampai/internal/models"
	"github.com/tomtom215/kampai/internal/realtime"
	"github.com/tomtom215/kampai/internal/validation"
)

const (
	// Lifetime of a shared activity.
	Lifetime = 30 * time.Minute
	// RecentLimit caps the timeline.
	RecentLimit = 10
)

// Store persists activities.
type Store interface {
	CreateActivity(ctx context.Context, a models.Activity) error
	// RecentActivities returns up to limit activities expiring after now,
	// newest first, with location and user attached.
	RecentActivities(ctx context.Context, now time.Time, limit int) ([]models.Activity, error)
	GetActivity(ctx context.Context, id string) (*models.Activity, error)
	DeleteActivity(ctx context.Context, id string) error
}

// ShareInput is a new activity.
type ShareInput struct {
	LocationID   string              `json:"location_id" validate:"required"`
	ActivityType models.ActivityType `json:"activity_type" validate:"required,oneof=camp travel other"`
	IsAnonymous  bool                `json:"is_anonymous"`
}

// Service is the activity API.
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

// Share posts an activity for sub.
func (s *Service) Share(ctx context.Context, sub authz.Subject, in ShareInput) (*models.Activity, error) {
	if err := s.authz.Check(sub, authz.ResourceActivities, authz.ActionCreate, ""); err != nil {
		return nil, err
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	a := models.Activity{
		ID:           uuid.NewString(),
		LocationID:   in.LocationID,
		UserID:       sub.UserID,
		ActivityType: in.ActivityType,
		IsAnonymous:  in.IsAnonymous,
		ExpiresAt:    now.Add(Lifetime),
		CreatedAt:    now,
	}
	if err := s.store.CreateActivity(ctx, a); err != nil {
		return nil, fmt.Errorf("share activity: %w", err)
	}
	realtime.Emit(ctx, s.feed, realtime.TableActivities, realtime.EventInsert, a, nil)
	return &a, nil
}

// Recent returns the newest RecentLimit unexpired activities. Anonymous
// entries have their user hidden.
func (s *Service) Recent(ctx context.Context) ([]models.Activity, error) {
	list, err := s.store.RecentActivities(ctx, s.now(), RecentLimit)
	if err != nil {
		return nil, fmt.Errorf("recent activities: %w", err)
	}
	if len(list) > RecentLimit {
		list = list[:RecentLimit]
	}
	for i := range list {
		if list[i].IsAnonymous {
			list[i].User = nil
		}
	}
	if list == nil {
		list = []models.Activity{}
	}
	return list, nil
}

// Delete removes one of sub's own activities.
func (s *Service) Delete(ctx context.Context, sub authz.Subject, id string) error {
	a, err := s.store.GetActivity(ctx, id)
	if err != nil {
		return fmt.Errorf("get activity %s: %w", id, err)
	}
	if err := s.authz.Check(sub, authz.ResourceActivities, authz.ActionDelete, a.UserID); err != nil {
		return err
	}
	if err := s.store.DeleteActivity(ctx, id); err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	realtime.Emit(ctx, s.feed, realtime.TableActivities, realtime.EventDelete, nil, a)
	return nil
}
