// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package mapview

import (
	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/markers"
	"github.com/tomtom215/kampai/internal/selection"
	"github.com/tomtom215/kampai/internal/viewport"
)

// Frame types.
const (
	FrameState = "state"
	FrameFatal = "fatal"
)

// MarkerView is a marker on the wire.
type MarkerView struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Title      string  `json:"title,omitempty"`
	Color      string  `json:"color"`
	Glyph      string  `json:"glyph,omitempty"`
	LocationID string  `json:"location_id,omitempty"`
}

func markerView(m *markers.Marker) MarkerView {
	v := MarkerView{
		ID:        m.ID,
		Kind:      string(m.Kind),
		Latitude:  m.Position.Lat,
		Longitude: m.Position.Lon,
		Title:     m.Title,
		Color:     m.Color,
		Glyph:     m.Glyph,
	}
	if m.Location != nil {
		v.LocationID = m.Location.ID
	}
	return v
}

// ClusterView is a cluster pin on the wire.
type ClusterView struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Count     int     `json:"count"`
}

// Camera asks the client to move the map.
type Camera struct {
	Center geo.Coordinate   `json:"center"`
	Zoom   int              `json:"zoom"`
	Fit    *geo.BoundingBox `json:"fit,omitempty"`
}

// Frame is the complete visible state of a map session. Clients replace
// their state with each frame rather than diffing.
type Frame struct {
	Seq         uint64              `json:"seq"`
	Type        string              `json:"type"`
	View        viewport.View       `json:"view"`
	Filter      geo.Category        `json:"filter,omitempty"`
	Markers     []MarkerView        `json:"markers"`
	Clusters    []ClusterView       `json:"clusters"`
	Districts   []MarkerView        `json:"districts,omitempty"`
	Selection   selection.Selection `json:"selection"`
	Loading     bool                `json:"loading"`
	Error       string              `json:"error,omitempty"`
	ShowSearch  bool                `json:"show_search"`
	Camera      *Camera             `json:"camera,omitempty"`
	MarkerCount int                 `json:"marker_count"`
	Searched    *geo.BoundingBox    `json:"searched_bounds,omitempty"`
}
