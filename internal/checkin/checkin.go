// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package checkin records camp logs (check-ins) with their photos and
// comments.
package checkin

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

// Interval is the minimum time between two check-ins of one user at one
// location.
const Interval = 12 * time.Hour

var (
	// ErrTooSoon is returned when the user checked in at the location less
	// than Interval ago.
	ErrTooSoon = models.ErrCheckInTooSoon
	// ErrEmptyComment is returned for a comment with neither text nor image.
	ErrEmptyComment = errors.New("comment needs text or an image")
)

// Store is the camp log persistence.
type Store interface {
	// ListCampLogs returns logs newest first with location, user, images and
	// comments attached. An empty userID lists every user's logs.
	ListCampLogs(ctx context.Context, userID string) ([]models.CampLog, error)
	GetCampLog(ctx context.Context, id string) (*models.CampLog, error)
	// LastCheckIn returns the newest check-in time of userID at locationID
	// at or after since.
	LastCheckIn(ctx context.Context, userID, locationID string, since time.Time) (time.Time, bool, error)
	// CreateCampLog inserts log together with log.Images in one write. It
	// returns models.ErrCheckInTooSoon, storing nothing, when the user has a
	// check-in at the same location created after since. A zero since
	// skips that check.
	CreateCampLog(ctx context.Context, log models.CampLog, since time.Time) error
	DeleteCampLog(ctx context.Context, id string) error
	AddCampLogImages(ctx context.Context, images []models.CampLogImage) error
	CreateComment(ctx context.Context, c models.CampLogComment) error
	GetComment(ctx context.Context, id string) (*models.CampLogComment, error)
	DeleteComment(ctx context.Context, id string) error
}

// CreateInput is a check-in request.
type CreateInput struct {
	LocationID string   `json:"location_id" validate:"required"`
	Content    string   `json:"content,omitempty" validate:"max=2000"`
	ImageURLs  []string `json:"image_urls,omitempty" validate:"max=10,dive,url"`
}

// CommentInput is a new comment. Content or ImageURL must be set.
type CommentInput struct {
	Content  string `json:"content,omitempty" validate:"max=1000"`
	ImageURL string `json:"image_url,omitempty" validate:"omitempty,url"`
}

// Service applies the check-in rules on top of a Store.
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

// List returns logs newest first, optionally only those of userID.
func (s *Service) List(ctx context.Context, userID string) ([]models.CampLog, error) {
	logs, err := s.store.ListCampLogs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list camp logs: %w", err)
	}
	if logs == nil {
		logs = []models.CampLog{}
	}
	return logs, nil
}

// CanCheckIn reports whether userID may check in at locationID now.
func (s *Service) CanCheckIn(ctx context.Context, userID, locationID string) (bool, error) {
	now := s.now()
	last, found, err := s.store.LastCheckIn(ctx, userID, locationID, now.Add(-Interval))
	if err != nil {
		return false, fmt.Errorf("check-in status: %w", err)
	}
	return !found || now.Sub(last) >= Interval, nil
}

// Create checks sub in at a location.
func (s *Service) Create(ctx context.Context, sub authz.Subject, in CreateInput) (*models.CampLog, error) {
	if err := s.authz.Check(sub, authz.ResourceCampLogs, authz.ActionCreate, ""); err != nil {
		return nil, err
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if len(in.ImageURLs) > 0 {
		if err := s.authz.Check(sub, authz.ResourceCampLogImages, authz.ActionCreate, sub.UserID); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	id := uuid.NewString()
	log := models.CampLog{
		ID:         id,
		UserID:     sub.UserID,
		LocationID: in.LocationID,
		Content:    strings.TrimSpace(in.Content),
		CreatedAt:  now,
		UpdatedAt:  now,
		Images:     newImages(sub.UserID, id, in.ImageURLs, now),
		Comments:   []models.CampLogComment{},
	}
	if err := s.store.CreateCampLog(ctx, log, now.Add(-Interval)); err != nil {
		if errors.Is(err, models.ErrCheckInTooSoon) {
			return nil, ErrTooSoon
		}
		return nil, fmt.Errorf("create camp log: %w", err)
	}
	realtime.Emit(ctx, s.feed, realtime.TableCampLogs, realtime.EventInsert, log, nil)
	for _, img := range log.Images {
		realtime.Emit(ctx, s.feed, realtime.TableCampLogImages, realtime.EventInsert, img, nil)
	}
	logging.Ctx(ctx).Info().Str("camp_log_id", log.ID).Str("location_id", log.LocationID).Msg("Checked in")
	return &log, nil
}

// Delete removes a camp log. Only its author (or an admin) may.
func (s *Service) Delete(ctx context.Context, sub authz.Subject, id string) error {
	log, err := s.store.GetCampLog(ctx, id)
	if err != nil {
		return fmt.Errorf("get camp log %s: %w", id, err)
	}
	if err := s.authz.Check(sub, authz.ResourceCampLogs, authz.ActionDelete, log.UserID); err != nil {
		return err
	}
	if err := s.store.DeleteCampLog(ctx, id); err != nil {
		return fmt.Errorf("delete camp log: %w", err)
	}
	realtime.Emit(ctx, s.feed, realtime.TableCampLogs, realtime.EventDelete, nil, map[string]string{"id": id, "user_id": log.UserID})
	return nil
}

// AddImages attaches uploaded image URLs to the caller's own camp log.
func (s *Service) AddImages(ctx context.Context, sub authz.Subject, logID string, urls []string) ([]models.CampLogImage, error) {
	if err := validation.Var("image_urls", urls, "required,max=10,dive,url"); err != nil {
		return nil, err
	}
	log, err := s.store.GetCampLog(ctx, logID)
	if err != nil {
		return nil, fmt.Errorf("get camp log %s: %w", logID, err)
	}
	return s.attach(ctx, sub, log, urls)
}

func (s *Service) attach(ctx context.Context, sub authz.Subject, log *models.CampLog, urls []string) ([]models.CampLogImage, error) {
	if err := s.authz.Check(sub, authz.ResourceCampLogImages, authz.ActionCreate, log.UserID); err != nil {
		return nil, err
	}
	images := newImages(sub.UserID, log.ID, urls, s.now().UTC())
	if err := s.store.AddCampLogImages(ctx, images); err != nil {
		return nil, fmt.Errorf("add camp log images: %w", err)
	}
	for _, img := range images {
		realtime.Emit(ctx, s.feed, realtime.TableCampLogImages, realtime.EventInsert, img, nil)
	}
	return images, nil
}

func newImages(userID, logID string, urls []string, now time.Time) []models.CampLogImage {
	images := make([]models.CampLogImage, len(urls))
	for i, u := range urls {
		images[i] = models.CampLogImage{
			ID:        uuid.NewString(),
			CampLogID: logID,
			ImageURL:  u,
			CreatedBy: userID,
			CreatedAt: now,
		}
	}
	return images
}

// AddComment comments on a camp log.
func (s *Service) AddComment(ctx context.Context, sub authz.Subject, logID string, in CommentInput) (*models.CampLogComment, error) {
	if err := s.authz.Check(sub, authz.ResourceComments, authz.ActionCreate, ""); err != nil {
		return nil, err
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" && in.ImageURL == "" {
		return nil, ErrEmptyComment
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if _, err := s.store.GetCampLog(ctx, logID); err != nil {
		return nil, fmt.Errorf("get camp log %s: %w", logID, err)
	}

	c := models.CampLogComment{
		ID:        uuid.NewString(),
		CampLogID: logID,
		UserID:    sub.UserID,
		Content:   in.Content,
		ImageURL:  in.ImageURL,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	realtime.Emit(ctx, s.feed, realtime.TableCampLogComments, realtime.EventInsert, c, nil)
	return &c, nil
}

// DeleteComment removes a comment. Anyone but the author gets
// models.ErrForbidden and the comment stays.
func (s *Service) DeleteComment(ctx context.Context, sub authz.Subject, id string) error {
	c, err := s.store.GetComment(ctx, id)
	if err != nil {
		return fmt.Errorf("get comment %s: %w", id, err)
	}
	if err := s.authz.Check(sub, authz.ResourceComments, authz.ActionDelete, c.UserID); err != nil {
		return err
	}
	if err := s.store.DeleteComment(ctx, id); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	realtime.Emit(ctx, s.feed, realtime.TableCampLogComments, realtime.EventDelete, nil, c)
	return nil
}
