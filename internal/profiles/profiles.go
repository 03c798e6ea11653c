// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package profiles reads and updates user profiles.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tomtom215/kampai/internal/authz"
	"github.com/tomtom215/kampai/internal/media"
	"github.com/tomtom215/kampai/internal/models"
	"github.com/tomtom215/kampai/internal/validation"
)

// SearchLimit caps mention autocompletion results.
const SearchLimit = 5

// ErrUploadsDisabled is returned by UploadAvatar without an uploader.
var ErrUploadsDisabled = errors.New("image uploads are not configured")

// Store persists profiles.
type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (*models.User, error)
	// SearchUsers returns users whose name starts with prefix,
	// case-insensitively.
	SearchUsers(ctx context.Context, prefix string, limit int) ([]models.UserSummary, error)
}

// Uploader stores avatar images. *media.Service implements it.
type Uploader interface {
	Upload(ctx context.Context, bucket, contentType string, size int64, r io.Reader) (string, error)
}

// Service is the profile API.
type Service struct {
	store    Store
	authz    *authz.Enforcer
	uploader Uploader
}

// NewService creates a service. uploader may be nil when uploads are
// disabled.
func NewService(store Store, enforcer *authz.Enforcer, uploader Uploader) *Service {
	return &Service{store: store, authz: enforcer, uploader: uploader}
}

// Get returns a profile.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", id, err)
	}
	if u.PreferredActivities == nil {
		u.PreferredActivities = []string{}
	}
	return u, nil
}

// Update changes the profile of id. Only its owner may.
func (s *Service) Update(ctx context.Context, sub authz.Subject, id string, upd models.ProfileUpdate) (*models.User, error) {
	if err := s.authz.Check(sub, authz.ResourceProfiles, authz.ActionUpdate, id); err != nil {
		return nil, err
	}
	if upd.Username != nil {
		name := strings.TrimSpace(*upd.Username)
		upd.Username = &name
	}
	if err := validation.Struct(&upd); err != nil {
		return nil, err
	}
	u, err := s.store.UpdateProfile(ctx, id, upd)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

// UploadAvatar stores a new avatar for sub and points the profile at it.
func (s *Service) UploadAvatar(ctx context.Context, sub authz.Subject, contentType string, size int64, r io.Reader) (*models.User, error) {
	if err := s.authz.Check(sub, authz.ResourceProfiles, authz.ActionUpdate, sub.UserID); err != nil {
		return nil, err
	}
	if s.uploader == nil {
		return nil, ErrUploadsDisabled
	}
	url, err := s.uploader.Upload(ctx, media.BucketAvatars, contentType, size, r)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, sub, sub.UserID, models.ProfileUpdate{AvatarURL: &url})
}

// Search returns mention candidates for a name prefix.
func (s *Service) Search(ctx context.Context, prefix string) ([]models.UserSummary, error) {
	prefix = strings.TrimSpace(strings.TrimPrefix(prefix, "@"))
	if prefix == "" {
		return []models.UserSummary{}, nil
	}
	users, err := s.store.SearchUsers(ctx, prefix, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	if users == nil {
		users = []models.UserSummary{}
	}
	return users, nil
}
