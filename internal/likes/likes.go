// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package likes toggles per-user likes on camp logs and locations.
package likes

import (
	"context"
	"fmt"

	"github.com/tomtom215/kampai/internal/authz"
	"github.com/tomtom215/kampai/internal/models"
	"github.com/tomtom215/kampai/internal/realtime"
)

// Store persists likes. AddLike and RemoveLike report whether a row changed,
// so concurrent toggles never double count.
type Store interface {
	CountLikes(ctx context.Context, targetID string) (int, error)
	HasLiked(ctx context.Context, targetID, userID string) (bool, error)
	AddLike(ctx context.Context, targetID, userID string) (bool, error)
	RemoveLike(ctx context.Context, targetID, userID string) (bool, error)
}

// Service is the like API.
type Service struct {
	store Store
	authz *authz.Enforcer
	feed  realtime.Publisher
}

// NewService creates a service. feed may be nil.
func NewService(store Store, enforcer *authz.Enforcer, feed realtime.Publisher) *Service {
	return &Service{store: store, authz: enforcer, feed: feed}
}

type likeRow struct {
	TargetID string `json:"target_id"`
	UserID   string `json:"user_id"`
}

// Status returns the count and, for a signed-in userID, whether they like
// targetID.
func (s *Service) Status(ctx context.Context, targetID, userID string) (models.LikeStatus, error) {
	st := models.LikeStatus{TargetID: targetID}
	n, err := s.store.CountLikes(ctx, targetID)
	if err != nil {
		return st, fmt.Errorf("count likes: %w", err)
	}
	st.Count = max(n, 0)
	if userID != "" {
		if st.Liked, err = s.store.HasLiked(ctx, targetID, userID); err != nil {
			return st, fmt.Errorf("like status: %w", err)
		}
	}
	return st, nil
}

// Toggle likes targetID, or unlikes it if sub already does, and returns the
// new status.
func (s *Service) Toggle(ctx context.Context, sub authz.Subject, targetID string) (models.LikeStatus, error) {
	if err := s.authz.Check(sub, authz.ResourceLikes, authz.ActionToggle, ""); err != nil {
		return models.LikeStatus{}, err
	}
	liked, err := s.store.HasLiked(ctx, targetID, sub.UserID)
	if err != nil {
		return models.LikeStatus{}, fmt.Errorf("like status: %w", err)
	}

	row := likeRow{TargetID: targetID, UserID: sub.UserID}
	if liked {
		changed, err := s.store.RemoveLike(ctx, targetID, sub.UserID)
		if err != nil {
			return models.LikeStatus{}, fmt.Errorf("remove like: %w", err)
		}
		if changed {
			realtime.Emit(ctx, s.feed, realtime.TableLikes, realtime.EventDelete, nil, row)
		}
	} else {
		changed, err := s.store.AddLike(ctx, targetID, sub.UserID)
		if err != nil {
			return models.LikeStatus{}, fmt.Errorf("add like: %w", err)
		}
		if changed {
			realtime.Emit(ctx, s.feed, realtime.TableLikes, realtime.EventInsert, row, nil)
		}
	}
	return s.Status(ctx, targetID, sub.UserID)
}
