// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package database

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/kampai/internal/activity"
	"github.com/tomtom215/kampai/internal/auth"
	"github.com/tomtom215/kampai/internal/chatroom"
	"github.com/tomtom215/kampai/internal/checkin"
	"github.com/tomtom215/kampai/internal/config"
	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/kampai"
	"github.com/tomtom215/kampai/internal/likes"
	"github.com/tomtom215/kampai/internal/locations"
	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/models"
	"github.com/tomtom215/kampai/internal/profiles"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

var (
	_ locations.Store = (*DB)(nil)
	_ auth.UserStore  = (*DB)(nil)
	_ profiles.Store  = (*DB)(nil)
	_ checkin.Store   = (*DB)(nil)
	_ likes.Store     = (*DB)(nil)
	_ kampai.Store    = (*DB)(nil)
	_ chatroom.Store  = (*DB)(nil)
	_ activity.Store  = (*DB)(nil)
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func seedUser(t *testing.T, db *DB, id, name string) {
	t.Helper()
	u := models.User{ID: id, Username: name, Email: name + "@example.com", PasswordHash: "x", Role: "user", CreatedAt: t0}
	if err := db.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s) error = %v", id, err)
	}
}

func seedLocation(t *testing.T, db *DB, id string, lat, lon float64, cat geo.Category, district string, created time.Time) {
	t.Helper()
	loc := models.Location{ID: id, Name: "Loc " + id, Category: cat, Latitude: lat, Longitude: lon, District: district, CreatedBy: "u1", CreatedAt: created}
	if err := db.CreateLocation(context.Background(), loc, nil); err != nil {
		t.Fatalf("CreateLocation(%s) error = %v", id, err)
	}
}

func TestMigrationsApplied(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	got, err := db.AppliedMigrations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(migrations()) {
		t.Errorf("AppliedMigrations() = %d, want %d", len(got), len(migrations()))
	}
	if err := db.migrate(context.Background()); err != nil {
		t.Errorf("second migrate() error = %v", err)
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestFindInBounds(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	seedLocation(t, db, "a", 35.0, 139.0, geo.CategoryCamp, "", t0)
	seedLocation(t, db, "b", 35.5, 139.5, geo.CategoryShop, "", t0.Add(time.Hour))
	seedLocation(t, db, "edge", 36.0, 140.0, geo.CategoryCamp, "", t0)
	seedLocation(t, db, "out", 37.0, 139.5, geo.CategoryCamp, "", t0)

	b, _ := geo.NewBoundingBox(35.0, 139.0, 36.0, 140.0)
	got, err := db.FindInBounds(ctx, b, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].ID != "b" {
		t.Errorf("FindInBounds() = %+v, want 3 with newest first", got)
	}

	camps, err := db.FindInBounds(ctx, b, geo.CategoryCamp)
	if err != nil {
		t.Fatal(err)
	}
	if len(camps) != 2 {
		t.Errorf("FindInBounds(camp) = %d, want 2", len(camps))
	}
}

func TestLocationAmenityRoundTrip(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	loc := models.Location{ID: "l1", Name: "Lake", Category: geo.CategoryCamp, Latitude: 35.1, Longitude: 139.1, CreatedBy: "u1", CreatedAt: t0}
	amenity := &models.Amenity{ID: "a1", HasShower: true, HasWifi: true, CreatedAt: t0}
	if err := db.CreateLocation(ctx, loc, amenity); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateLocation(ctx, loc, nil); err == nil {
		t.Error("duplicate CreateLocation() should fail")
	}

	got, err := db.GetAmenity(ctx, "l1")
	if err != nil || got == nil || !got.HasShower || got.HasPower || got.LocationID != "l1" {
		t.Errorf("GetAmenity() = %+v, %v", got, err)
	}
	none, err := db.GetAmenity(ctx, "missing")
	if none != nil || err != nil {
		t.Errorf("GetAmenity(missing) = %+v, %v, want nil, nil", none, err)
	}
	if _, err := db.GetLocation(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetLocation(missing) error = %v, want ErrNotFound", err)
	}
}

func TestTrendingOrder(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedLocation(t, db, "old", 35, 139, geo.CategoryCamp, "", now.Add(-48*time.Hour))
	seedLocation(t, db, "new", 35, 139, geo.CategoryCamp, "", now.Add(-time.Hour))
	seedLocation(t, db, "liked", 35, 139, geo.CategoryCamp, "", now.Add(-72*time.Hour))
	seedLocation(t, db, "busy", 35, 139, geo.CategoryCamp, "", now.Add(-96*time.Hour))

	if _, err := db.AddLike(ctx, "liked", "u1"); err != nil {
		t.Fatal(err)
	}
	if err := db.CreateCampLog(ctx, models.CampLog{ID: "c1", UserID: "u1", LocationID: "busy", CreatedAt: now, UpdatedAt: now}, time.Time{}); err != nil {
		t.Fatal(err)
	}

	got, err := db.TrendingLocations(ctx, "", 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"liked", "busy", "new", "old"}
	if len(got) != len(want) {
		t.Fatalf("TrendingLocations() len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("TrendingLocations()[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
	if got[1].ActivityCount != 1 || got[1].LatestActivity == nil {
		t.Errorf("busy = %+v, want one recent activity", got[1])
	}

	page, err := db.TrendingLocations(ctx, "", 2, 3)
	if err != nil || len(page) != 1 {
		t.Errorf("TrendingLocations(offset 3) = %d, %v", len(page), err)
	}
}

func TestDistrictClusters(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	seedLocation(t, db, "s1", 35.0, 139.0, geo.CategoryCamp, "Shibuya", t0)
	seedLocation(t, db, "s2", 35.2, 139.2, geo.CategoryCamp, "Shibuya", t0)
	seedLocation(t, db, "m1", 35.5, 139.5, geo.CategoryCamp, "Minato", t0)
	seedLocation(t, db, "x", 35.5, 139.5, geo.CategoryCamp, "", t0)

	b, _ := geo.NewBoundingBox(34, 138, 36, 140)
	got, err := db.DistrictClusters(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].District != "Shibuya" || got[0].Count != 2 {
		t.Fatalf("DistrictClusters() = %+v", got)
	}
	if got[0].Latitude < 35.09 || got[0].Latitude > 35.11 {
		t.Errorf("Shibuya latitude = %v, want centroid 35.1", got[0].Latitude)
	}
}

func TestUsers(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	seedUser(t, db, "u1", "Hana")
	seedUser(t, db, "u2", "haruto")
	seedUser(t, db, "u3", "ken")

	dup := models.User{ID: "u9", Username: "x", Email: "HANA@example.com", PasswordHash: "x", Role: "user", CreatedAt: t0}
	if err := db.CreateUser(ctx, dup); !errors.Is(err, auth.ErrEmailTaken) {
		t.Errorf("duplicate CreateUser() error = %v, want ErrEmailTaken", err)
	}
	if u, err := db.UserByEmail(ctx, "Hana@Example.com"); err != nil || u.ID != "u1" {
		t.Errorf("UserByEmail() = %+v, %v", u, err)
	}
	if _, err := db.UserByEmail(ctx, "nobody@example.com"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("UserByEmail(unknown) error = %v", err)
	}

	found, err := db.SearchUsers(ctx, "HA", 5)
	if err != nil || len(found) != 2 {
		t.Errorf("SearchUsers(HA) = %+v, %v", found, err)
	}

	bio := "camper"
	u, err := db.UpdateProfile(ctx, "u1", models.ProfileUpdate{Bio: &bio, PreferredActivities: []string{"camp"}})
	if err != nil {
		t.Fatal(err)
	}
	if u.Bio != "camper" || len(u.PreferredActivities) != 1 || u.Username != "Hana" {
		t.Errorf("UpdateProfile() = %+v", u)
	}
	if _, err := db.UpdateProfile(ctx, "nope", models.ProfileUpdate{Bio: &bio}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("UpdateProfile(unknown) error = %v", err)
	}
}

func TestCampLogsNestedAndCascade(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	seedUser(t, db, "u1", "hana")
	seedLocation(t, db, "l1", 35, 139, geo.CategoryCamp, "Chuo", t0)

	older := models.CampLog{ID: "c1", UserID: "u1", LocationID: "l1", Content: "first", CreatedAt: t0, UpdatedAt: t0}
	newer := models.CampLog{ID: "c2", UserID: "u1", LocationID: "l1", CreatedAt: t0.Add(13 * time.Hour), UpdatedAt: t0.Add(13 * time.Hour),
		Images: []models.CampLogImage{{ID: "i1", CampLogID: "c2", ImageURL: "https://img/1.jpg", CreatedBy: "u1", CreatedAt: t0}}}
	for _, c := range []models.CampLog{older, newer} {
		if err := db.CreateCampLog(ctx, c, c.CreatedAt.Add(-12*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}
	again := models.CampLog{ID: "c3", UserID: "u1", LocationID: "l1", CreatedAt: t0.Add(14 * time.Hour), UpdatedAt: t0.Add(14 * time.Hour),
		Images: []models.CampLogImage{{ID: "i2", CampLogID: "c3", ImageURL: "https://img/2.jpg", CreatedBy: "u1", CreatedAt: t0}}}
	if err := db.CreateCampLog(ctx, again, again.CreatedAt.Add(-12*time.Hour)); !errors.Is(err, models.ErrCheckInTooSoon) {
		t.Errorf("CreateCampLog() within 12h error = %v, want ErrCheckInTooSoon", err)
	}
	if _, err := db.GetCampLog(ctx, "c3"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("refused camp log was stored: %v", err)
	}
	if err := db.CreateComment(ctx, models.CampLogComment{ID: "m1", CampLogID: "c1", UserID: "u1", Content: "nice", CreatedAt: t0}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddLike(ctx, "m1", "u1"); err != nil {
		t.Fatal(err)
	}

	logs, err := db.ListCampLogs(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 || logs[0].ID != "c2" {
		t.Fatalf("ListCampLogs() = %+v, want newest first", logs)
	}
	if len(logs[0].Images) != 1 || len(logs[1].Comments) != 1 || logs[1].Comments[0].User.Username != "hana" {
		t.Errorf("children not attached: %+v", logs)
	}
	if logs[0].Location == nil || logs[0].Location.District != "Chuo" {
		t.Errorf("Location = %+v", logs[0].Location)
	}

	last, ok, err := db.LastCheckIn(ctx, "u1", "l1", t0.Add(time.Hour))
	if err != nil || !ok || !last.Equal(newer.CreatedAt) {
		t.Errorf("LastCheckIn() = %v, %v, %v", last, ok, err)
	}
	if _, ok, _ := db.LastCheckIn(ctx, "u1", "l1", t0.Add(24*time.Hour)); ok {
		t.Error("LastCheckIn() after window should find nothing")
	}

	if err := db.DeleteCampLog(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetComment(ctx, "m1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("comment should be deleted with its log, got %v", err)
	}
	if n, _ := db.CountLikes(ctx, "m1"); n != 0 {
		t.Errorf("comment likes = %d after cascade", n)
	}
	if err := db.DeleteCampLog(ctx, "c1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second DeleteCampLog() error = %v", err)
	}
}

func TestLikes(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	if added, err := db.AddLike(ctx, "t", "u1"); err != nil || !added {
		t.Fatalf("AddLike() = %v, %v", added, err)
	}
	if added, _ := db.AddLike(ctx, "t", "u1"); added {
		t.Error("second AddLike() should be a no-op")
	}
	if liked, _ := db.HasLiked(ctx, "t", "u1"); !liked {
		t.Error("HasLiked() = false")
	}
	if n, _ := db.CountLikes(ctx, "t"); n != 1 {
		t.Errorf("CountLikes() = %d", n)
	}
	if removed, _ := db.RemoveLike(ctx, "t", "u1"); !removed {
		t.Error("RemoveLike() = false")
	}
	if removed, _ := db.RemoveLike(ctx, "t", "u1"); removed {
		t.Error("second RemoveLike() should report false")
	}
}

func TestKampaiAndActivities(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	seedUser(t, db, "u1", "hana")
	seedLocation(t, db, "l1", 35, 139, geo.CategoryCamp, "", t0)

	items := []models.KampaiNow{
		{ID: "k1", LocationID: "l1", UserID: "u1", ExpiresAt: t0.Add(time.Hour), CreatedAt: t0},
		{ID: "k2", LocationID: "l1", UserID: "u1", IsAnonymous: true, ExpiresAt: t0.Add(2 * time.Hour), CreatedAt: t0.Add(time.Minute)},
	}
	for _, k := range items {
		if err := db.CreateKampaiNow(ctx, k); err != nil {
			t.Fatal(err)
		}
	}
	active, err := db.ActiveKampaiNow(ctx, t0.Add(90*time.Minute))
	if err != nil || len(active) != 1 || active[0].ID != "k2" || active[0].Location == nil {
		t.Errorf("ActiveKampaiNow() = %+v, %v", active, err)
	}
	if err := db.DeleteKampaiNow(ctx, "k1"); err != nil {
		t.Error(err)
	}
	if _, err := db.GetKampaiNow(ctx, "k1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetKampaiNow(deleted) error = %v", err)
	}

	for i, id := range []string{"a1", "a2"} {
		a := models.Activity{ID: id, LocationID: "l1", UserID: "u1", ActivityType: models.ActivityCamp,
			ExpiresAt: t0.Add(30 * time.Minute), CreatedAt: t0.Add(time.Duration(i) * time.Minute)}
		if err := db.CreateActivity(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	recent, err := db.RecentActivities(ctx, t0, 1)
	if err != nil || len(recent) != 1 || recent[0].ID != "a2" || recent[0].User.Username != "hana" {
		t.Errorf("RecentActivities() = %+v, %v", recent, err)
	}
	if expired, _ := db.RecentActivities(ctx, t0.Add(time.Hour), 10); len(expired) != 0 {
		t.Errorf("RecentActivities(after expiry) = %d, want 0", len(expired))
	}
}

func TestChatAndNotifications(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	seedUser(t, db, "u1", "hana")
	msg := models.ChatMessage{ID: "m1", LocationID: "l1", UserID: "u1", Content: "hi @ken", Mentions: []string{"u3"},
		ExpiresAt: t0.Add(4 * time.Hour), CreatedAt: t0}
	note := models.Notification{ID: "n1", UserID: "u3", MessageID: "m1", Type: "mention", CreatedAt: t0}
	if err := db.CreateMessage(ctx, msg, []models.Notification{note}); err != nil {
		t.Fatal(err)
	}
	later := msg
	later.ID, later.CreatedAt, later.Mentions = "m2", t0.Add(time.Minute), nil
	if err := db.CreateMessage(ctx, later, nil); err != nil {
		t.Fatal(err)
	}

	history, err := db.ListMessages(ctx, "l1", t0)
	if err != nil || len(history) != 2 || history[0].ID != "m1" || history[0].Mentions[0] != "u3" {
		t.Fatalf("ListMessages() = %+v, %v", history, err)
	}
	if history[1].Mentions == nil {
		t.Error("Mentions should decode to an empty slice")
	}
	if gone, _ := db.ListMessages(ctx, "l1", t0.Add(5*time.Hour)); len(gone) != 0 {
		t.Errorf("expired messages listed: %d", len(gone))
	}

	notes, err := db.ListNotifications(ctx, "u3")
	if err != nil || len(notes) != 1 || notes[0].Message == nil || notes[0].Message.Content != "hi @ken" {
		t.Fatalf("ListNotifications() = %+v, %v", notes, err)
	}
	if err := db.MarkNotificationRead(ctx, "n1"); err != nil {
		t.Fatal(err)
	}
	if n, _ := db.GetNotification(ctx, "n1"); n == nil || !n.IsRead {
		t.Errorf("GetNotification() = %+v, want read", n)
	}

	if err := db.DeleteMessage(ctx, "m1"); err != nil {
		t.Fatal(err)
	}
	if notes, _ := db.ListNotifications(ctx, "u3"); len(notes) != 0 {
		t.Errorf("notifications should go with their message, got %d", len(notes))
	}
	if err := db.DeleteMessage(ctx, "m1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second DeleteMessage() error = %v", err)
	}
}
