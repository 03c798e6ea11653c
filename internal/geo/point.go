// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package geo

import (
	"fmt"
	"regexp"
	"strconv"
)

var pointPattern = regexp.MustCompile(`^\s*POINT\(\s*([-\d.]+)\s+([-\d.]+)\s*\)\s*$`)

// FormatPoint renders c as "POINT(lon lat)"; longitude comes first.
func FormatPoint(c Coordinate) string {
	return fmt.Sprintf("POINT(%s %s)",
		strconv.FormatFloat(c.Lon, 'f', -1, 64),
		strconv.FormatFloat(c.Lat, 'f', -1, 64))
}

// ParsePoint reads "POINT(lon lat)".
func ParsePoint(s string) (Coordinate, error) {
	m := pointPattern.FindStringSubmatch(s)
	if m == nil {
		return Coordinate{}, fmt.Errorf("%w: not a POINT: %q", ErrInvalidCoordinate, s)
	}
	lon, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: longitude %q", ErrInvalidCoordinate, m[1])
	}
	lat, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("%w: latitude %q", ErrInvalidCoordinate, m[2])
	}
	c := Coordinate{Lat: lat, Lon: lon}
	return c, c.Validate()
}

// RoundedKey renders c as "lat,lon" with four decimals (about 11m). It is the
// geocode cache key.
func RoundedKey(c Coordinate) string {
	return strconv.FormatFloat(c.Lat, 'f', 4, 64) + "," + strconv.FormatFloat(c.Lon, 'f', 4, 64)
}
