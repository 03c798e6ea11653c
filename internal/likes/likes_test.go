// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package likes

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tomtom215/kampai/internal/authz"
	"github.com/tomtom215/kampai/internal/models"
)

type memStore struct {
	mu    sync.Mutex
	likes map[[2]string]bool
	bias  int
}

func (m *memStore) CountLikes(_ context.Context, target string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.bias
	for k := range m.likes {
		if k[0] == target {
			n++
		}
	}
	return n, nil
}

func (m *memStore) HasLiked(_ context.Context, target, user string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.likes[[2]string{target, user}], nil
}

func (m *memStore) AddLike(_ context.Context, target, user string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{target, user}
	if m.likes[k] {
		return false, nil
	}
	m.likes[k] = true
	return true, nil
}

func (m *memStore) RemoveLike(_ context.Context, target, user string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{target, user}
	if !m.likes[k] {
		return false, nil
	}
	delete(m.likes, k)
	return true, nil
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	e, err := authz.NewEnforcer("")
	if err != nil {
		t.Fatal(err)
	}
	store := &memStore{likes: map[[2]string]bool{}}
	return NewService(store, e, nil), store
}

func TestToggle(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := authz.Subject{UserID: "alice"}
	bob := authz.Subject{UserID: "bob"}

	st, err := svc.Toggle(ctx, alice, "log-1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Count != 1 || !st.Liked {
		t.Errorf("Toggle() = %+v, want count 1 liked", st)
	}
	st, _ = svc.Toggle(ctx, bob, "log-1")
	if st.Count != 2 {
		t.Errorf("Count = %d, want 2", st.Count)
	}
	st, _ = svc.Toggle(ctx, alice, "log-1")
	if st.Count != 1 || st.Liked {
		t.Errorf("Toggle() again = %+v, want count 1 not liked", st)
	}

	anon, err := svc.Status(ctx, "log-1", "")
	if err != nil || anon.Count != 1 || anon.Liked {
		t.Errorf("Status(anonymous) = %+v, %v", anon, err)
	}

	if _, err := svc.Toggle(ctx, authz.Subject{}, "log-1"); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("anonymous Toggle() error = %v", err)
	}
}

func TestCountNeverNegative(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	store.bias = -3
	st, err := svc.Status(context.Background(), "log-9", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if st.Count != 0 {
		t.Errorf("Count = %d, want 0", st.Count)
	}
}
