// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package locations

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/models"
	"github.com/tomtom215/kampai/internal/realtime"
	"github.com/tomtom215/kampai/internal/validation"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// failingStore wraps MemoryStore and injects errors or bad records.
type failingStore struct {
	*MemoryStore
	findErr     error
	findResult  []models.Location
	amenityErr  error
	trendingErr error
	districtErr error
	districtN   int
}

func (f *failingStore) FindInBounds(ctx context.Context, b geo.BoundingBox, c geo.Category) ([]models.Location, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.findResult != nil {
		return f.findResult, nil
	}
	return f.MemoryStore.FindInBounds(ctx, b, c)
}

func (f *failingStore) GetAmenity(ctx context.Context, id string) (*models.Amenity, error) {
	if f.amenityErr != nil {
		return nil, f.amenityErr
	}
	return f.MemoryStore.GetAmenity(ctx, id)
}

func (f *failingStore) TrendingLocations(ctx context.Context, c geo.Category, limit, offset int) ([]models.TrendingLocation, error) {
	if f.trendingErr != nil {
		return nil, f.trendingErr
	}
	return f.MemoryStore.TrendingLocations(ctx, c, limit, offset)
}

func (f *failingStore) DistrictClusters(ctx context.Context, b geo.BoundingBox) ([]models.DistrictCluster, error) {
	f.districtN++
	if f.districtErr != nil {
		return nil, f.districtErr
	}
	return f.MemoryStore.DistrictClusters(ctx, b)
}

func tokyoBox(t *testing.T) geo.BoundingBox {
	t.Helper()
	b, err := geo.NewBoundingBox(35.60, 139.60, 35.80, 139.90)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func seed(n int, category geo.Category, district string) []models.Location {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Location, n)
	for i := range out {
		out[i] = models.Location{
			ID:        fmt.Sprintf("%s-%02d", category, i),
			Name:      fmt.Sprintf("%s %d", category, i),
			Category:  category,
			Latitude:  35.65 + float64(i)*0.001,
			Longitude: 139.70 + float64(i)*0.001,
			District:  district,
			CreatedBy: "u1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func TestQueryBounds(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	store.Load(seed(3, geo.CategoryCamp, "Shibuya"))
	store.Load(seed(2, geo.CategoryShop, "Shinjuku"))
	store.Load([]models.Location{{ID: "osaka", Name: "Osaka", Category: geo.CategorySpot, Latitude: 34.69, Longitude: 135.50}})
	svc := NewService(store, nil)

	all, err := svc.QueryBounds(context.Background(), tokyoBox(t), "")
	if err != nil {
		t.Fatalf("QueryBounds() error = %v", err)
	}
	if len(all) != 5 {
		t.Errorf("QueryBounds() returned %d, want 5", len(all))
	}

	shops, err := svc.QueryBounds(context.Background(), tokyoBox(t), geo.CategoryShop)
	if err != nil {
		t.Fatalf("QueryBounds(shop) error = %v", err)
	}
	if len(shops) != 2 {
		t.Errorf("QueryBounds(shop) returned %d, want 2", len(shops))
	}
	for _, l := range shops {
		if l.Category != geo.CategoryShop {
			t.Errorf("got category %s in shop query", l.Category)
		}
	}
}

func TestQueryBoundsEmptyIsNotNil(t *testing.T) {
	t.Parallel()

	svc := NewService(NewMemoryStore(), nil)
	got, err := svc.QueryBounds(context.Background(), tokyoBox(t), "")
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("QueryBounds() = %v, %v, want empty slice", got, err)
	}
}

func TestQueryBoundsFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		store *failingStore
		cat   geo.Category
	}{
		{"store error", &failingStore{MemoryStore: NewMemoryStore(), findErr: errors.New("connection reset")}, ""},
		{"bad category in record", &failingStore{MemoryStore: NewMemoryStore(), findResult: []models.Location{{ID: "x", Category: "bar", Latitude: 35.7, Longitude: 139.7}}}, ""},
		{"bad coordinate in record", &failingStore{MemoryStore: NewMemoryStore(), findResult: []models.Location{{ID: "x", Category: geo.CategoryCamp, Latitude: 135.7, Longitude: 139.7}}}, ""},
		{"unknown filter", &failingStore{MemoryStore: NewMemoryStore()}, "bar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := NewService(tt.store, nil)
			_, err := svc.QueryBounds(context.Background(), tokyoBox(t), tt.cat)
			if !errors.Is(err, ErrQueryFailed) {
				t.Errorf("QueryBounds() error = %v, want ErrQueryFailed", err)
			}
		})
	}
}

func TestGetWithMissingAmenity(t *testing.T) {
	t.Parallel()

	store := &failingStore{MemoryStore: NewMemoryStore()}
	store.Load(seed(1, geo.CategoryHotel, ""))
	svc := NewService(store, nil)

	d, err := svc.Get(context.Background(), "hotel-00")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if d.Amenities != nil {
		t.Errorf("Amenities = %+v, want nil", d.Amenities)
	}

	store.amenityErr = errors.New("timeout")
	if _, err := svc.Get(context.Background(), "hotel-00"); err != nil {
		t.Errorf("Get() with amenity failure error = %v, want nil", err)
	}

	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestCreate(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	feed := realtime.NewMemoryFeed()
	defer feed.Close()
	sub, err := feed.Subscribe(context.Background(), realtime.Filter{Table: realtime.TableLocations})
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Unsubscribe()

	svc := NewService(store, feed)
	in := models.CreateLocationInput{
		Name:      "Riverside camp",
		Category:  geo.CategoryCamp,
		Latitude:  35.7,
		Longitude: 139.8,
		Amenities: &models.AmenityInput{Shower: true, Wifi: true},
	}
	loc, err := svc.Create(context.Background(), "u1", in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if loc.CreatedBy != "u1" || loc.ID == "" {
		t.Errorf("Create() = %+v", loc)
	}

	d, err := svc.Get(context.Background(), loc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if d.Amenities == nil || !d.Amenities.HasShower || !d.Amenities.HasWifi || d.Amenities.HasPower {
		t.Errorf("Amenities = %+v", d.Amenities)
	}

	select {
	case c := <-sub.C:
		if c.Type != realtime.EventInsert {
			t.Errorf("change type = %s, want INSERT", c.Type)
		}
		var got models.Location
		if err := c.Decode(&got); err != nil || got.ID != loc.ID {
			t.Errorf("change record = %+v, %v", got, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no realtime INSERT for created location")
	}
}

func TestCreateRejects(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	svc := NewService(store, nil)

	if _, err := svc.Create(context.Background(), "", models.CreateLocationInput{Name: "x", Category: geo.CategoryCamp}); !errors.Is(err, models.ErrUnauthorized) {
		t.Errorf("Create() without user error = %v, want ErrUnauthorized", err)
	}
	_, err := svc.Create(context.Background(), "u1", models.CreateLocationInput{Name: "x", Category: "bar", Latitude: 10})
	if !errors.Is(err, validation.ErrInvalid) {
		t.Errorf("Create() bad category error = %v, want validation error", err)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d locations after rejected creates", store.Len())
	}
}
