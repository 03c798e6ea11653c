// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package geocode resolves location points to short district-level
// addresses, caching results by rounded coordinate.
package geocode

import (
	"context"
	"fmt"

	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/logging"
)

// Service answers address lookups from the cache when it can and from the
// resolver otherwise.
type Service struct {
	cache    *Cache
	resolver Resolver
}

// NewService combines cache and resolver.
func NewService(cache *Cache, resolver Resolver) *Service {
	return &Service{cache: cache, resolver: resolver}
}

// Address resolves a "POINT(lon lat)" string. On any failure it returns ""
// with the error, so callers can show an empty address and carry on. A
// point that cannot be parsed yields "" and no error.
func (s *Service) Address(ctx context.Context, point string) (string, error) {
	c, err := geo.ParsePoint(point)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("point", point).Msg("Unparseable point, skipping geocode")
		return "", nil
	}
	return s.AddressAt(ctx, c)
}

// AddressAt resolves a coordinate.
func (s *Service) AddressAt(ctx context.Context, c geo.Coordinate) (string, error) {
	key := geo.RoundedKey(c)

	addr, ok, err := s.cache.Get(key)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Geocode cache read failed")
	}
	if ok {
		return addr, nil
	}

	addr, err = s.resolver.ReverseGeocode(ctx, c)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Reverse geocoding failed")
		return "", fmt.Errorf("reverse geocode %s: %w", key, err)
	}
	if err := s.cache.Put(key, addr); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Geocode cache write failed")
	}
	return addr, nil
}
