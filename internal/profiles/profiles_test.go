// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package profiles

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/tomtom215/kampai/internal/authz"
	"github.com/tomtom215/kampai/internal/media"
	"github.com/tomtom215/kampai/internal/models"
	"github.com/tomtom215/kampai/internal/validation"
)

type memStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func (m *memStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) UpdateProfile(_ context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.AvatarURL != nil {
		u.AvatarURL = *upd.AvatarURL
	}
	if upd.PreferredActivities != nil {
		u.PreferredActivities = upd.PreferredActivities
	}
	m.users[id] = u
	return &u, nil
}

func (m *memStore) SearchUsers(_ context.Context, prefix string, limit int) ([]models.UserSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UserSummary
	for _, u := range m.users {
		if strings.HasPrefix(strings.ToLower(u.Username), strings.ToLower(prefix)) && len(out) < limit {
			out = append(out, models.UserSummary{ID: u.ID, Username: u.Username})
		}
	}
	return out, nil
}

type fakeUploader struct {
	bucket string
}

func (f *fakeUploader) Upload(_ context.Context, bucket, contentType string, _ int64, _ io.Reader) (string, error) {
	if contentType != "image/png" {
		return "", media.ErrInvalidImage
	}
	f.bucket = bucket
	return "https://cdn.example.jp/" + bucket + "/1.jpg", nil
}

func newTestService(t *testing.T, up Uploader) *Service {
	t.Helper()
	e, err := authz.NewEnforcer("")
	if err != nil {
		t.Fatal(err)
	}
	store := &memStore{users: map[string]models.User{
		"alice": {ID: "alice", Username: "Alice"},
		"alex":  {ID: "alex", Username: "alex"},
		"bob":   {ID: "bob", Username: "bob"},
	}}
	return NewService(store, e, up)
}

func ptr(s string) *string { return &s }

func TestUpdateOwnProfile(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil)
	ctx := context.Background()
	alice := authz.Subject{UserID: "alice"}

	u, err := svc.Update(ctx, alice, "alice", models.ProfileUpdate{
		Username:            ptr("  ありす "),
		PreferredActivities: []string{"camp", "travel"},
		Bio:                 ptr("週末キャンパー"),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if u.Username != "ありす" || len(u.PreferredActivities) != 2 {
		t.Errorf("Update() = %+v", u)
	}

	if _, err := svc.Update(ctx, alice, "bob", models.ProfileUpdate{Bio: ptr("hacked")}); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("Update() of another profile error = %v", err)
	}
	if _, err := svc.Update(ctx, alice, "alice", models.ProfileUpdate{PreferredActivities: []string{"golf"}}); !errors.Is(err, validation.ErrInvalid) {
		t.Errorf("Update() with bad activity error = %v", err)
	}

	got, err := svc.Get(ctx, "bob")
	if err != nil || got.PreferredActivities == nil {
		t.Errorf("Get() = %+v, %v, want empty activity list", got, err)
	}
}

func TestUploadAvatar(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	alice := authz.Subject{UserID: "alice"}

	if _, err := newTestService(t, nil).UploadAvatar(ctx, alice, "image/png", 10, strings.NewReader("x")); !errors.Is(err, ErrUploadsDisabled) {
		t.Errorf("UploadAvatar() without uploader error = %v", err)
	}

	up := &fakeUploader{}
	svc := newTestService(t, up)
	u, err := svc.UploadAvatar(ctx, alice, "image/png", 10, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("UploadAvatar() error = %v", err)
	}
	if up.bucket != media.BucketAvatars || u.AvatarURL != "https://cdn.example.jp/avatars/1.jpg" {
		t.Errorf("bucket = %q, avatar = %q", up.bucket, u.AvatarURL)
	}
	if _, err := svc.UploadAvatar(ctx, alice, "image/gif", 10, strings.NewReader("x")); !errors.Is(err, media.ErrInvalidImage) {
		t.Errorf("UploadAvatar(gif) error = %v", err)
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, nil)
	got, err := svc.Search(context.Background(), "@al")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("Search(@al) = %v, want alice and alex", got)
	}
	if got, _ := svc.Search(context.Background(), " "); len(got) != 0 {
		t.Errorf("Search(blank) = %v", got)
	}
}
