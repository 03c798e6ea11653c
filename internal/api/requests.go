// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/kampai/internal/auth"
	"github.com/tomtom215/kampai/internal/authz"
	"github.com/tomtom215/kampai/internal/geo"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// decodeJSON reads one JSON object from the body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadJSON)
		}
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return nil
}

// subject is the authorization subject of the request; anonymous callers
// get a zero Subject.
func subject(r *http.Request) authz.Subject {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return authz.Subject{}
	}
	return authz.Subject{UserID: claims.UserID(), Role: claims.Role}
}

func floatQuery(r *http.Request, key string) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", geo.ErrInvalidCoordinate, key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not a number", geo.ErrInvalidCoordinate, key)
	}
	return v, nil
}

// boundsQuery reads min_lat, min_lng, max_lat and max_lng.
func boundsQuery(r *http.Request) (geo.BoundingBox, error) {
	var vals [4]float64
	for i, key := range []string{"min_lat", "min_lng", "max_lat", "max_lng"} {
		v, err := floatQuery(r, key)
		if err != nil {
			return geo.BoundingBox{}, err
		}
		vals[i] = v
	}
	return geo.NewBoundingBox(vals[0], vals[1], vals[2], vals[3])
}

// coordinateQuery reads lat and lng.
func coordinateQuery(r *http.Request) (geo.Coordinate, error) {
	lat, err := floatQuery(r, "lat")
	if err != nil {
		return geo.Coordinate{}, err
	}
	lng, err := floatQuery(r, "lng")
	if err != nil {
		return geo.Coordinate{}, err
	}
	c := geo.Coordinate{Lat: lat, Lon: lng}
	return c, c.Validate()
}

// categoryQuery reads an optional type filter.
func categoryQuery(r *http.Request) (geo.Category, error) {
	raw := r.URL.Query().Get("type")
	if raw == "" {
		return "", nil
	}
	c, err := geo.ParseCategory(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadQuery, err)
	}
	return c, nil
}

func intQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
