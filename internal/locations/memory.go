// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package locations

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/models"
)

const (
	rtreeDims        = 2
	rtreeMinChildren = 25
	rtreeMaxChildren = 50
	pointTolerance   = 1e-9
)

// indexedLocation adapts a location to rtreego.Spatial. Dimension 0 is
// latitude and 1 is longitude.
type indexedLocation struct {
	loc  models.Location
	rect rtreego.Rect
}

func (l *indexedLocation) Bounds() rtreego.Rect {
	return l.rect
}

// MemoryStore is an in-process Store backed by an R-tree. It serves the
// memory database backend and operator tooling.
type MemoryStore struct {
	mu        sync.RWMutex
	tree      *rtreego.Rtree
	byID      map[string]*indexedLocation
	amenities map[string]models.Amenity
	likes     map[string]int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tree:      rtreego.NewTree(rtreeDims, rtreeMinChildren, rtreeMaxChildren),
		byID:      make(map[string]*indexedLocation),
		amenities: make(map[string]models.Amenity),
		likes:     make(map[string]int),
	}
}

// Load bulk-inserts locations, replacing any with the same id.
func (m *MemoryStore) Load(locs []models.Location) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range locs {
		m.putLocked(l)
	}
}

func (m *MemoryStore) putLocked(l models.Location) {
	if old, ok := m.byID[l.ID]; ok {
		m.tree.Delete(old)
	}
	item := &indexedLocation{
		loc:  l,
		rect: rtreego.Point{l.Latitude, l.Longitude}.ToRect(pointTolerance),
	}
	m.tree.Insert(item)
	m.byID[l.ID] = item
}

// Remove deletes a location. It reports whether it existed.
func (m *MemoryStore) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.byID[id]
	if !ok {
		return false
	}
	m.tree.Delete(item)
	delete(m.byID, id)
	delete(m.amenities, id)
	return true
}

// Len returns the number of indexed locations.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Size()
}

// SetLikeCount feeds the trending order.
func (m *MemoryStore) SetLikeCount(locationID string, n int) {
	m.mu.Lock()
	m.likes[locationID] = n
	m.mu.Unlock()
}

func (m *MemoryStore) searchLocked(b geo.BoundingBox) ([]*indexedLocation, error) {
	rect, err := rtreego.NewRectFromPoints(
		rtreego.Point{b.SouthWest.Lat, b.SouthWest.Lon},
		rtreego.Point{b.NorthEast.Lat, b.NorthEast.Lon},
	)
	if err != nil {
		return nil, fmt.Errorf("invalid bounding box: %w", err)
	}
	hits := m.tree.SearchIntersect(rect)
	out := make([]*indexedLocation, 0, len(hits))
	for _, h := range hits {
		item, ok := h.(*indexedLocation)
		if !ok {
			continue
		}
		// The tolerance rect can touch a box the point is outside of.
		if b.Contains(item.loc.Coordinate()) {
			out = append(out, item)
		}
	}
	return out, nil
}

// FindInBounds implements Store.
func (m *MemoryStore) FindInBounds(ctx context.Context, b geo.BoundingBox, category geo.Category) ([]models.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	items, err := m.searchLocked(b)
	if err != nil {
		return nil, err
	}
	out := make([]models.Location, 0, len(items))
	for _, it := range items {
		if category != "" && it.loc.Category != category {
			continue
		}
		out = append(out, it.loc)
	}
	sortByCreatedDesc(out)
	return out, nil
}

func sortByCreatedDesc(locs []models.Location) {
	sort.SliceStable(locs, func(i, j int) bool {
		if locs[i].CreatedAt.Equal(locs[j].CreatedAt) {
			return locs[i].ID < locs[j].ID
		}
		return locs[i].CreatedAt.After(locs[j].CreatedAt)
	})
}

// GetLocation implements Store.
func (m *MemoryStore) GetLocation(_ context.Context, id string) (*models.Location, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("location %s: %w", id, models.ErrNotFound)
	}
	loc := item.loc
	return &loc, nil
}

// GetAmenity implements Store.
func (m *MemoryStore) GetAmenity(_ context.Context, locationID string) (*models.Amenity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.amenities[locationID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// CreateLocation implements Store.
func (m *MemoryStore) CreateLocation(ctx context.Context, loc models.Location, amenity *models.Amenity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[loc.ID]; exists {
		return fmt.Errorf("location %s already exists", loc.ID)
	}
	m.putLocked(loc)
	if amenity != nil {
		m.amenities[loc.ID] = *amenity
	}
	return nil
}

// TrendingLocations implements Store: most liked first, then newest.
func (m *MemoryStore) TrendingLocations(_ context.Context, category geo.Category, limit, offset int) ([]models.TrendingLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]models.TrendingLocation, 0, len(m.byID))
	for id, it := range m.byID {
		if category != "" && it.loc.Category != category {
			continue
		}
		t := models.TrendingLocation{Location: it.loc, LikeCount: m.likes[id]}
		if a, ok := m.amenities[id]; ok {
			t.Amenities = &a
		}
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].LikeCount != all[j].LikeCount {
			return all[i].LikeCount > all[j].LikeCount
		}
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return []models.TrendingLocation{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// DistrictClusters implements Store: count and centroid per district.
// Locations without a district are skipped.
func (m *MemoryStore) DistrictClusters(_ context.Context, b geo.BoundingBox) ([]models.DistrictCluster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items, err := m.searchLocked(b)
	if err != nil {
		return nil, err
	}
	acc := make(map[string]*models.DistrictCluster)
	for _, it := range items {
		if it.loc.District == "" {
			continue
		}
		c, ok := acc[it.loc.District]
		if !ok {
			c = &models.DistrictCluster{District: it.loc.District}
			acc[it.loc.District] = c
		}
		c.Count++
		c.Latitude += it.loc.Latitude
		c.Longitude += it.loc.Longitude
	}

	out := make([]models.DistrictCluster, 0, len(acc))
	for _, c := range acc {
		c.Latitude /= float64(c.Count)
		c.Longitude /= float64(c.Count)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].District < out[j].District
	})
	return out, nil
}
