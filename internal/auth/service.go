// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/models"
	"github.com/tomtom215/kampai/internal/validation"
)

var (
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned by UserStore.CreateUser for a duplicate email.
	ErrEmailTaken = errors.New("email already registered")
)

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// UserStore is the account persistence the service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u models.User) error
	// UserByEmail returns models.ErrNotFound for an unknown email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// SignUpInput is a registration request.
type SignUpInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Username string `json:"username" validate:"required,min=2,max=40"`
}

// SignInInput is a password sign-in request.
type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Tokens is what a successful sign-in or refresh returns.
type Tokens struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         *models.User `json:"user"`
}

// Config for Service.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
	// AdminEmails are granted RoleAdmin on sign-up.
	AdminEmails []string
}

// Service signs users up and in, and rotates refresh sessions.
type Service struct {
	cfg      Config
	users    UserStore
	sessions *SessionStore
	tokens   *TokenManager
	events   *eventBus
}

// NewService builds the service. Zero durations default to one hour of
// access and thirty days of refresh.
func NewService(cfg Config, users UserStore, sessions *SessionStore) (*Service, error) {
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	tm, err := NewTokenManager(cfg.Secret, cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, users: users, sessions: sessions, tokens: tm, events: newEventBus()}, nil
}

// Tokens returns the access token manager used by Middleware.
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

// SignUp creates an account and signs it in.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*Tokens, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	u := models.User{
		ID:                  uuid.NewString(),
		Username:            in.Username,
		Email:               in.Email,
		PasswordHash:        hash,
		Role:                s.roleFor(in.Email),
		PreferredActivities: []string{},
		CreatedAt:           time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	logging.Ctx(ctx).Info().Str("user_id", u.ID).Msg("User registered")
	return s.startSession(ctx, &u, EventSignedIn)
}

// SignIn checks the password and opens a session.
func (s *Service) SignIn(ctx context.Context, in SignInInput) (*Tokens, error) {
	in.Email = normalizeEmail(in.Email)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	u, err := s.users.UserByEmail(ctx, in.Email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !CheckPassword(u.PasswordHash, in.Password) {
		logging.Ctx(ctx).Warn().Str("user_id", u.ID).Msg("Failed sign-in")
		return nil, ErrInvalidCredentials
	}
	return s.startSession(ctx, u, EventSignedIn)
}

// Refresh rotates a refresh token: the old one is revoked and a new pair is
// returned.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	sess, err := s.sessions.Get(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetUser(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := s.sessions.Delete(ctx, refreshToken); err != nil {
		return nil, err
	}
	return s.startSession(ctx, u, EventTokenRefreshed)
}

// SignOut revokes refreshToken. Signing out twice is not an error.
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	sess, err := s.sessions.Get(ctx, refreshToken)
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, refreshToken); err != nil {
		return err
	}
	s.events.publish(Event{Type: EventSignedOut, UserID: sess.UserID})
	return nil
}

// SignOutEverywhere revokes every session of userID.
func (s *Service) SignOutEverywhere(ctx context.Context, userID string) error {
	n, err := s.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Str("user_id", userID).Int("sessions", n).Msg("Signed out everywhere")
	s.events.publish(Event{Type: EventSignedOut, UserID: userID})
	return nil
}

// Subscribe registers fn for auth state changes. fn runs on the goroutine
// that caused the change and must not block.
func (s *Service) Subscribe(fn func(Event)) *Subscription {
	return s.events.subscribe(fn)
}

// Unsubscribe removes a listener. Unknown or nil subscriptions are ignored.
func (s *Service) Unsubscribe(sub *Subscription) {
	s.events.unsubscribe(sub)
}

func (s *Service) startSession(ctx context.Context, u *models.User, typ EventType) (*Tokens, error) {
	access, exp, err := s.tokens.Issue(u.ID, u.Username, u.Role)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Create(ctx, u.ID, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	s.events.publish(Event{Type: typ, UserID: u.ID})
	return &Tokens{AccessToken: access, RefreshToken: sess.Token, ExpiresAt: exp, User: u}, nil
}

func (s *Service) roleFor(email string) string {
	for _, admin := range s.cfg.AdminEmails {
		if normalizeEmail(admin) == email {
			return RoleAdmin
		}
	}
	return RoleUser
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EventType names an auth state change.
type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// Event is delivered to subscribers.
type Event struct {
	Type   EventType
	UserID string
}

// Subscription identifies one listener.
type Subscription struct {
	fn func(Event)
}

type eventBus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[*Subscription]struct{})}
}

func (b *eventBus) subscribe(fn func(Event)) *Subscription {
	sub := &Subscription{fn: fn}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *eventBus) unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

func (b *eventBus) publish(e Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.subs))
	for sub := range b.subs {
		fns = append(fns, sub.fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(e)
	}
}
