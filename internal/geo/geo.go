// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package geo holds the geographic value types shared by the map pipeline:
// coordinates, bounding boxes, location categories, the PostGIS-style point
// text format and the Web Mercator projection used for screen-space clustering.
package geo

import (
	"errors"
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

// ErrInvalidCoordinate is returned for latitudes outside [-90,90] or
// longitudes outside [-180,180].
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// Valid reports whether c lies on the globe.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Validate returns ErrInvalidCoordinate with the offending values.
func (c Coordinate) Validate() error {
	if !c.Valid() {
		return fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinate, c.Lat, c.Lon)
	}
	return nil
}

// Near reports whether c and o differ by less than tolerance degrees on both axes.
func (c Coordinate) Near(o Coordinate, tolerance float64) bool {
	return math.Abs(c.Lat-o.Lat) < tolerance && math.Abs(c.Lon-o.Lon) < tolerance
}

// DistanceKm is the haversine distance between two coordinates.
func DistanceKm(a, b Coordinate) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// BoundingBox is a rectangular query region given by its south-west and
// north-east corners. Boxes crossing the antimeridian are not supported.
type BoundingBox struct {
	SouthWest Coordinate `json:"sw"`
	NorthEast Coordinate `json:"ne"`
}

// NewBoundingBox builds a box from corner values and validates it.
func NewBoundingBox(minLat, minLon, maxLat, maxLon float64) (BoundingBox, error) {
	b := BoundingBox{
		SouthWest: Coordinate{Lat: minLat, Lon: minLon},
		NorthEast: Coordinate{Lat: maxLat, Lon: maxLon},
	}
	return b, b.Validate()
}

// Validate checks both corners and their ordering.
func (b BoundingBox) Validate() error {
	if err := b.SouthWest.Validate(); err != nil {
		return fmt.Errorf("south-west corner: %w", err)
	}
	if err := b.NorthEast.Validate(); err != nil {
		return fmt.Errorf("north-east corner: %w", err)
	}
	if b.SouthWest.Lat > b.NorthEast.Lat || b.SouthWest.Lon > b.NorthEast.Lon {
		return fmt.Errorf("%w: south-west corner is not below and left of north-east corner", ErrInvalidCoordinate)
	}
	return nil
}

// IsZero reports whether b is the zero value.
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

// Contains is inclusive on every edge.
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Lat >= b.SouthWest.Lat && c.Lat <= b.NorthEast.Lat &&
		c.Lon >= b.SouthWest.Lon && c.Lon <= b.NorthEast.Lon
}

// Center returns the midpoint of b.
func (b BoundingBox) Center() Coordinate {
	return Coordinate{
		Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
		Lon: (b.SouthWest.Lon + b.NorthEast.Lon) / 2,
	}
}

// Extend grows b to include c. Extending the zero box yields a degenerate box at c.
func (b BoundingBox) Extend(c Coordinate) BoundingBox {
	if b.IsZero() {
		return BoundingBox{SouthWest: c, NorthEast: c}
	}
	return BoundingBox{
		SouthWest: Coordinate{Lat: math.Min(b.SouthWest.Lat, c.Lat), Lon: math.Min(b.SouthWest.Lon, c.Lon)},
		NorthEast: Coordinate{Lat: math.Max(b.NorthEast.Lat, c.Lat), Lon: math.Max(b.NorthEast.Lon, c.Lon)},
	}
}

// BoundsOf returns the smallest box containing every coordinate.
func BoundsOf(coords []Coordinate) BoundingBox {
	var b BoundingBox
	for i, c := range coords {
		if i == 0 {
			b = BoundingBox{SouthWest: c, NorthEast: c}
			continue
		}
		b = b.Extend(c)
	}
	return b
}

// Key renders b as "neLat,neLon,swLat,swLon" with full precision. Two boxes
// share a key only if they are identical.
func (b BoundingBox) Key() string {
	return fmt.Sprintf("%v,%v,%v,%v", b.NorthEast.Lat, b.NorthEast.Lon, b.SouthWest.Lat, b.SouthWest.Lon)
}

// String is used in log fields.
func (b BoundingBox) String() string {
	return fmt.Sprintf("[%.5f,%.5f .. %.5f,%.5f]", b.SouthWest.Lat, b.SouthWest.Lon, b.NorthEast.Lat, b.NorthEast.Lon)
}
