// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package locations

import (
	"context"
	"sync"

	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/models"
)

// TrendingFeed accumulates trending pages for one category. LoadMore asks
// for the page after what is already held and drops ids already seen.
type TrendingFeed struct {
	svc      *Service
	category geo.Category

	mu      sync.Mutex
	items   []models.TrendingLocation
	seen    map[string]struct{}
	hasMore bool
	loading bool
}

// NewTrendingFeed creates an empty feed. Call Refresh to load the first page.
func NewTrendingFeed(svc *Service, category geo.Category) *TrendingFeed {
	return &TrendingFeed{
		svc:      svc,
		category: category,
		seen:     make(map[string]struct{}),
		hasMore:  true,
	}
}

// Refresh drops everything and loads the first page.
func (f *TrendingFeed) Refresh(ctx context.Context) error {
	page, err := f.svc.Trending(ctx, f.category, 0)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = f.items[:0]
	f.seen = make(map[string]struct{}, len(page))
	f.merge(page)
	f.hasMore = len(page) == TrendingPageSize
	return nil
}

// LoadMore fetches the next page. It is a no-op when no more pages exist or
// another load is running.
func (f *TrendingFeed) LoadMore(ctx context.Context) error {
	f.mu.Lock()
	if f.loading || !f.hasMore {
		f.mu.Unlock()
		return nil
	}
	f.loading = true
	offset := len(f.items)
	f.mu.Unlock()

	page, err := f.svc.Trending(ctx, f.category, offset)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = false
	if err != nil {
		return err
	}
	f.merge(page)
	f.hasMore = len(page) == TrendingPageSize
	return nil
}

func (f *TrendingFeed) merge(page []models.TrendingLocation) {
	for _, l := range page {
		if _, dup := f.seen[l.ID]; dup {
			continue
		}
		f.seen[l.ID] = struct{}{}
		f.items = append(f.items, l)
	}
}

// Items returns a copy of the merged list.
func (f *TrendingFeed) Items() []models.TrendingLocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.TrendingLocation, len(f.items))
	copy(out, f.items)
	return out
}

// HasMore reports whether the last page was full.
func (f *TrendingFeed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}
