// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package locations answers "what is in this box" and owns location
// creation, trending pages and district aggregates.
package locations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/models"
	"github.com/tomtom215/kampai/internal/realtime"
	"github.com/tomtom215/kampai/internal/validation"
)

// ErrQueryFailed wraps every failure of a bounds query, whether the store
// failed or returned records that break the location invariants.
var ErrQueryFailed = errors.New("location query failed")

// TrendingPageSize is the page size of the trending ranking.
const TrendingPageSize = 10

// Store is the persistence contract. internal/database implements it on
// DuckDB and MemoryStore implements it on an R-tree.
type Store interface {
	// FindInBounds returns every location inside b (edges inclusive),
	// restricted to category unless it is empty.
	FindInBounds(ctx context.Context, b geo.BoundingBox, category geo.Category) ([]models.Location, error)
	// GetLocation returns models.ErrNotFound for an unknown id.
	GetLocation(ctx context.Context, id string) (*models.Location, error)
	// GetAmenity returns nil, nil when the location has no amenity row.
	GetAmenity(ctx context.Context, locationID string) (*models.Amenity, error)
	CreateLocation(ctx context.Context, loc models.Location, amenity *models.Amenity) error
	TrendingLocations(ctx context.Context, category geo.Category, limit, offset int) ([]models.TrendingLocation, error)
	DistrictClusters(ctx context.Context, b geo.BoundingBox) ([]models.DistrictCluster, error)
}

// Service sits between the API/map sessions and a Store.
type Service struct {
	store Store
	feed  realtime.Publisher
	now   func() time.Time
}

// NewService creates a service. feed may be nil.
func NewService(store Store, feed realtime.Publisher) *Service {
	return &Service{store: store, feed: feed, now: time.Now}
}

// QueryBounds returns the locations inside b matching category (empty means
// all). Any failure is reported as ErrQueryFailed.
func (s *Service) QueryBounds(ctx context.Context, b geo.BoundingBox, category geo.Category) ([]models.Location, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	if category != "" && !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", ErrQueryFailed, category)
	}

	locs, err := s.store.FindInBounds(ctx, b, category)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	for i := range locs {
		if err := checkRecord(locs[i]); err != nil {
			return nil, fmt.Errorf("%w: record %s: %v", ErrQueryFailed, locs[i].ID, err)
		}
	}
	if locs == nil {
		locs = []models.Location{}
	}
	return locs, nil
}

func checkRecord(l models.Location) error {
	if l.ID == "" {
		return errors.New("missing id")
	}
	if !l.Category.Valid() {
		return fmt.Errorf("category %q", l.Category)
	}
	return l.Coordinate().Validate()
}

// Get returns a location with its amenities.
func (s *Service) Get(ctx context.Context, id string) (*models.LocationDetail, error) {
	loc, err := s.store.GetLocation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get location %s: %w", id, err)
	}
	amenity, err := s.store.GetAmenity(ctx, id)
	if err != nil {
		// The page still renders without amenities.
		logging.Ctx(ctx).Warn().Err(err).Str("location_id", id).Msg("Failed to load amenities")
		amenity = nil
	}
	return &models.LocationDetail{Location: *loc, Amenities: amenity}, nil
}

// Create stores a new location for userID and announces it on the realtime
// feed.
func (s *Service) Create(ctx context.Context, userID string, in models.CreateLocationInput) (*models.Location, error) {
	if userID == "" {
		return nil, models.ErrUnauthorized
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	loc := models.Location{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Category:  in.Category,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		District:  in.District,
		CreatedBy: userID,
		CreatedAt: now,
	}

	var amenity *models.Amenity
	if a := in.Amenities; a != nil {
		amenity = &models.Amenity{
			ID:            uuid.NewString(),
			LocationID:    loc.ID,
			HasShower:     a.Shower,
			HasPower:      a.Power,
			HasParking:    a.Parking,
			IsPetFriendly: a.PetFriendly,
			HasWifi:       a.Wifi,
			CreatedAt:     now,
		}
	}

	if err := s.store.CreateLocation(ctx, loc, amenity); err != nil {
		return nil, fmt.Errorf("create location: %w", err)
	}
	logging.Ctx(ctx).Info().Str("location_id", loc.ID).Str("type", string(loc.Category)).Msg("Location created")
	realtime.Emit(ctx, s.feed, realtime.TableLocations, realtime.EventInsert, loc, nil)
	return &loc, nil
}

// Trending returns one page of the trending ranking.
func (s *Service) Trending(ctx context.Context, category geo.Category, offset int) ([]models.TrendingLocation, error) {
	if offset < 0 {
		offset = 0
	}
	page, err := s.store.TrendingLocations(ctx, category, TrendingPageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("trending locations: %w", err)
	}
	return page, nil
}

// Districts returns the district aggregates inside b.
func (s *Service) Districts(ctx context.Context, b geo.BoundingBox) ([]models.DistrictCluster, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	clusters, err := s.store.DistrictClusters(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("district clusters: %w", err)
	}
	return clusters, nil
}
