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

// DistrictZoom is the zoom the map jumps to when a district pin is clicked.
const DistrictZoom = 15

// DistrictFetcher loads district aggregates for the izakaya layer and skips
// a query when the bounds are identical to the last successful one.
type DistrictFetcher struct {
	svc *Service

	mu      sync.Mutex
	lastKey string
}

// NewDistrictFetcher wraps svc.
func NewDistrictFetcher(svc *Service) *DistrictFetcher {
	return &DistrictFetcher{svc: svc}
}

// Fetch returns the clusters for b. fetched is false when b matched the
// previous successful query and nothing was loaded. The key is only
// remembered after a success, so a failed box is retried next time.
func (d *DistrictFetcher) Fetch(ctx context.Context, b geo.BoundingBox) (clusters []models.DistrictCluster, fetched bool, err error) {
	key := b.Key()
	d.mu.Lock()
	same := key == d.lastKey
	d.mu.Unlock()
	if same {
		return nil, false, nil
	}

	clusters, err = d.svc.Districts(ctx, b)
	if err != nil {
		return nil, false, err
	}

	d.mu.Lock()
	d.lastKey = key
	d.mu.Unlock()
	return clusters, true, nil
}

// Reset forgets the last bounds.
func (d *DistrictFetcher) Reset() {
	d.mu.Lock()
	d.lastKey = ""
	d.mu.Unlock()
}
