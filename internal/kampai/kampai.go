// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package kampai implements "kampai now": short-lived announcements that a
// user is raising a glass at a location.
package kampai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tomtom215/kampai/internal/authz"
	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/metrics"
	"github.com/tomtom215/kampai/internal/models"
	"github.com/tomtom215/kampai/internal/realtime"
	"github.com/tomtom215/kampai/internal/validation"
)

// Defaults.
const (
	DefaultCooldown     = 15 * time.Second
	DefaultLifetime     = time.Hour
	DefaultPollInterval = 5 * time.Second
)

// ErrCooldown is returned when a user announces again within the cooldown.
var ErrCooldown = errors.New("please wait a moment before the next kampai")

// Store persists announcements.
type Store interface {
	// CreateKampaiNow is the create_kampai_now RPC.
	CreateKampaiNow(ctx context.Context, k models.KampaiNow) error
	// ActiveKampaiNow returns announcements expiring after now, newest first,
	// with user and location attached.
	ActiveKampaiNow(ctx context.Context, now time.Time) ([]models.KampaiNow, error)
	GetKampaiNow(ctx context.Context, id string) (*models.KampaiNow, error)
	DeleteKampaiNow(ctx context.Context, id string) error
}

// CreateInput is an announcement request.
type CreateInput struct {
	LocationID  string `json:"location_id" validate:"required"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// Config tunes the service. Zero values take the defaults.
type Config struct {
	Cooldown time.Duration
	Lifetime time.Duration
}

type userLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Service creates, lists and deletes announcements.
type Service struct {
	store Store
	authz *authz.Enforcer
	feed  realtime.Publisher
	cfg   Config
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*userLimiter
}

// NewService creates a service. feed may be nil.
func NewService(store Store, enforcer *authz.Enforcer, feed realtime.Publisher, cfg Config) *Service {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultLifetime
	}
	return &Service{
		store:    store,
		authz:    enforcer,
		feed:     feed,
		cfg:      cfg,
		now:      time.Now,
		limiters: make(map[string]*userLimiter),
	}
}

// reserve takes the user's cooldown token. The caller cancels the
// reservation when the announcement is not stored.
func (s *Service) reserve(userID string) (*rate.Reservation, bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, l := range s.limiters {
		if now.Sub(l.lastSeen) > s.cfg.Cooldown {
			delete(s.limiters, id)
		}
	}
	l, ok := s.limiters[userID]
	if !ok {
		l = &userLimiter{lim: rate.NewLimiter(rate.Every(s.cfg.Cooldown), 1)}
		s.limiters[userID] = l
	}
	r := l.lim.ReserveN(now, 1)
	if !r.OK() || r.DelayFrom(now) > 0 {
		r.CancelAt(now)
		return nil, false
	}
	l.lastSeen = now
	return r, true
}

// Create announces sub at a location. A second announcement by the same
// user within the cooldown fails with ErrCooldown.
func (s *Service) Create(ctx context.Context, sub authz.Subject, in CreateInput) (*models.KampaiNow, error) {
	if err := s.authz.Check(sub, authz.ResourceKampaiNow, authz.ActionCreate, ""); err != nil {
		return nil, err
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	reservation, ok := s.reserve(sub.UserID)
	if !ok {
		metrics.KampaiCooldownRejections.Inc()
		return nil, ErrCooldown
	}

	now := s.now().UTC()
	k := models.KampaiNow{
		ID:          uuid.NewString(),
		LocationID:  in.LocationID,
		UserID:      sub.UserID,
		IsAnonymous: in.IsAnonymous,
		ExpiresAt:   now.Add(s.cfg.Lifetime),
		CreatedAt:   now,
	}
	if err := s.store.CreateKampaiNow(ctx, k); err != nil {
		reservation.CancelAt(s.now())
		return nil, fmt.Errorf("create kampai now: %w", err)
	}
	logging.Ctx(ctx).Info().Str("kampai_id", k.ID).Str("location_id", k.LocationID).Msg("Kampai!")
	realtime.Emit(ctx, s.feed, realtime.TableKampaiNow, realtime.EventInsert, k, nil)
	return &k, nil
}

// Active lists unexpired announcements, newest first. Anonymous entries have
// their user hidden.
func (s *Service) Active(ctx context.Context) ([]models.KampaiNow, error) {
	list, err := s.store.ActiveKampaiNow(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("active kampai now: %w", err)
	}
	for i := range list {
		if list[i].IsAnonymous {
			list[i].User = nil
		}
	}
	if list == nil {
		list = []models.KampaiNow{}
	}
	return list, nil
}

// Delete removes one of sub's own announcements.
func (s *Service) Delete(ctx context.Context, sub authz.Subject, id string) error {
	k, err := s.store.GetKampaiNow(ctx, id)
	if err != nil {
		return fmt.Errorf("get kampai now %s: %w", id, err)
	}
	if err := s.authz.Check(sub, authz.ResourceKampaiNow, authz.ActionDelete, k.UserID); err != nil {
		return err
	}
	if err := s.store.DeleteKampaiNow(ctx, id); err != nil {
		return fmt.Errorf("delete kampai now: %w", err)
	}
	realtime.Emit(ctx, s.feed, realtime.TableKampaiNow, realtime.EventDelete, nil, k)
	return nil
}
