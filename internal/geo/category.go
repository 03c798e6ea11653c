// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package geo

import (
	"fmt"
	"strings"
)

// Category is the fixed set of location kinds.
type Category string

const (
	CategoryCamp  Category = "camp"
	CategoryHotel Category = "hotel"
	CategorySpot  Category = "spot"
	CategoryShop  Category = "shop"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryCamp, CategoryHotel, CategorySpot, CategoryShop}

// Marker pin colors.
const (
	ColorCamp    = "#22C55E"
	ColorHotel   = "#0EA5E9"
	ColorSpot    = "#EAB308"
	ColorShop    = "#EC4899"
	ColorDefault = "#6B7280"

	// ColorDistrict is used for district aggregate pins on the izakaya layer.
	ColorDistrict = "#EF4444"
)

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryCamp, CategoryHotel, CategorySpot, CategoryShop:
		return true
	}
	return false
}

// ParseCategory is case-insensitive. An empty string parses to "" with no
// error, meaning "no filter".
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c == "" || c.Valid() {
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// MarkerColor maps a category to its pin color. Unknown categories get the
// neutral gray.
func MarkerColor(c Category) string {
	switch c {
	case CategoryCamp:
		return ColorCamp
	case CategoryHotel:
		return ColorHotel
	case CategorySpot:
		return ColorSpot
	case CategoryShop:
		return ColorShop
	default:
		return ColorDefault
	}
}
