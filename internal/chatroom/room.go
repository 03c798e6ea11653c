// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package chatroom

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/models"
	"github.com/tomtom215/kampai/internal/realtime"
)

// Subscriber opens realtime subscriptions. *realtime.Feed implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, f realtime.Filter) (*realtime.Subscription, error)
}

// Room is a live view of one location's chat: the history loaded on join,
// with realtime inserts appended and deletes removed.
type Room struct {
	locationID string
	sub        *realtime.Subscription
	onChange   func([]models.ChatMessage)
	done       chan struct{}

	mu   sync.Mutex
	msgs []models.ChatMessage
}

// Join loads the history of locationID and follows its changes until Close.
// onChange receives a copy of the message list after every applied change.
func (s *Service) Join(ctx context.Context, feed Subscriber, locationID string, onChange func([]models.ChatMessage)) (*Room, error) {
	// Subscribe first so nothing sent between the load and the subscription
	// is lost. Duplicates are dropped by id.
	sub, err := feed.Subscribe(ctx, realtime.Filter{
		Table:  realtime.TableLocationMessages,
		Column: "location_id",
		Value:  locationID,
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to chat %s: %w", locationID, err)
	}
	history, err := s.History(ctx, locationID)
	if err != nil {
		sub.Unsubscribe()
		return nil, err
	}

	r := &Room{
		locationID: locationID,
		sub:        sub,
		onChange:   onChange,
		done:       make(chan struct{}),
		msgs:       history,
	}
	go r.follow()
	return r, nil
}

func (r *Room) follow() {
	defer close(r.done)
	for c := range r.sub.C {
		var m models.ChatMessage
		if err := c.Decode(&m); err != nil {
			logging.Warn().Err(err).Str("location_id", r.locationID).Msg("Undecodable chat change")
			continue
		}
		if r.apply(c.Type, m) && r.onChange != nil {
			r.onChange(r.Messages())
		}
	}
}

func (r *Room) apply(typ realtime.EventType, m models.ChatMessage) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i := range r.msgs {
		if r.msgs[i].ID == m.ID {
			idx = i
			break
		}
	}
	switch typ {
	case realtime.EventInsert:
		if idx >= 0 {
			return false
		}
		r.msgs = append(r.msgs, m)
	case realtime.EventDelete:
		if idx < 0 {
			return false
		}
		r.msgs = append(r.msgs[:idx], r.msgs[idx+1:]...)
	default:
		return false
	}
	return true
}

// Messages returns a copy of the current list.
func (r *Room) Messages() []models.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ChatMessage, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// Close unsubscribes and waits for the follower to stop. No onChange call
// starts after Close returns.
func (r *Room) Close() {
	r.sub.Unsubscribe()
	<-r.done
}
