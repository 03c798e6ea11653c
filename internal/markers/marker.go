// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package markers owns the rendered pins of a map session.
//
// A Manager is confined to the goroutine of the session that created it and
// is not safe for concurrent use.
package markers

import (
	"strconv"

	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/models"
)

// StackTolerance is the distance in degrees under which two locations are
// treated as the same point on the map.
const StackTolerance = 0.0001

// PendingID is the id of the "new location" pin.
const PendingID = "pending"

// Kind tells the client how to draw a marker.
type Kind string

const (
	KindLocation Kind = "location"
	KindPending  Kind = "pending"
	KindDistrict Kind = "district"
)

// Marker is one pin. Location markers are bound to exactly one location.
type Marker struct {
	ID       string
	Kind     Kind
	Position geo.Coordinate
	Title    string
	Color    string
	Glyph    string
	Location *models.Location

	visible bool
	onClick func()
}

// NewLocationMarker builds the marker for loc. onClick receives a copy of loc
// taken now, not whatever the caller's slice holds later.
func NewLocationMarker(loc models.Location, onClick func(models.Location)) *Marker {
	captured := loc
	m := &Marker{
		ID:       loc.ID,
		Kind:     KindLocation,
		Position: loc.Coordinate(),
		Title:    loc.Name,
		Color:    geo.MarkerColor(loc.Category),
		Location: &captured,
		visible:  true,
	}
	if onClick != nil {
		m.onClick = func() { onClick(captured) }
	}
	return m
}

// NewDistrictMarker builds a district aggregate pin.
func NewDistrictMarker(c models.DistrictCluster, onClick func(models.DistrictCluster)) *Marker {
	captured := c
	m := &Marker{
		ID:       "district:" + c.District,
		Kind:     KindDistrict,
		Position: geo.Coordinate{Lat: c.Latitude, Lon: c.Longitude},
		Title:    c.District,
		Color:    geo.ColorDistrict,
		Glyph:    strconv.Itoa(c.Count),
		visible:  true,
	}
	if onClick != nil {
		m.onClick = func() { onClick(captured) }
	}
	return m
}

// Click runs the marker's handler, if any.
func (m *Marker) Click() {
	if m.onClick != nil {
		m.onClick()
	}
}

// Visible is false while the marker is absorbed into a cluster.
func (m *Marker) Visible() bool {
	return m.visible
}

// SetVisible is used by the cluster layer.
func (m *Marker) SetVisible(v bool) {
	m.visible = v
}

// Stacked reports whether a and b are the same point on the map.
func Stacked(a, b geo.Coordinate) bool {
	return a.Near(b, StackTolerance)
}
