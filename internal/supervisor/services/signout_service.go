// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package services

import (
	"context"

	"github.com/tomtom215/kampai/internal/auth"
)

// AuthEvents is the subscription half of *auth.Service.
type AuthEvents interface {
	Subscribe(fn func(auth.Event)) *auth.Subscription
	Unsubscribe(sub *auth.Subscription)
}

// UserDisconnector closes a user's live connections. *websocket.Hub
// implements it.
type UserDisconnector interface {
	DisconnectUser(userID string) int
}

// SignOutService closes every websocket connection of a user that signs
// out, on this device or everywhere. Other devices reconnect with their
// still valid access token.
type SignOutService struct {
	events AuthEvents
	hub    UserDisconnector
}

// NewSignOutService bridges events to hub.
func NewSignOutService(events AuthEvents, hub UserDisconnector) *SignOutService {
	return &SignOutService{events: events, hub: hub}
}

// Serve implements suture.Service. The subscription lives until ctx ends.
func (s *SignOutService) Serve(ctx context.Context) error {
	sub := s.events.Subscribe(func(e auth.Event) {
		if e.Type == auth.EventSignedOut {
			s.hub.DisconnectUser(e.UserID)
		}
	})
	defer s.events.Unsubscribe(sub)

	<-ctx.Done()
	return ctx.Err()
}

func (s *SignOutService) String() string {
	return "signout-bridge"
}
