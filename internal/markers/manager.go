// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package markers

import (
	"errors"
	"fmt"

	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/models"
)

// ErrUnknownMarker is returned by Click for an id that is not rendered.
var ErrUnknownMarker = errors.New("unknown marker")

// Renderer is the map surface markers are drawn on.
type Renderer interface {
	AttachMarker(m *Marker)
	DetachMarker(m *Marker)
}

// Manager creates and destroys location markers so that the rendered set
// always equals the latest applied result, plus the optional pending pin.
type Manager struct {
	renderer Renderer
	onClick  func(models.Location)

	markers []*Marker
	byID    map[string]*Marker
	pending *Marker
}

// NewManager draws on r. onClick is invoked with the clicked marker's
// location after the pending pin has been cleared.
func NewManager(r Renderer, onClick func(models.Location)) *Manager {
	return &Manager{
		renderer: r,
		onClick:  onClick,
		byID:     make(map[string]*Marker),
	}
}

// Apply replaces every location marker with one per entry of locs. Old
// markers are detached before any new marker is attached.
func (m *Manager) Apply(locs []models.Location) []*Marker {
	m.Clear()

	m.markers = make([]*Marker, 0, len(locs))
	for _, loc := range locs {
		mk := NewLocationMarker(loc, m.handleClick)
		m.markers = append(m.markers, mk)
		m.byID[mk.ID] = mk
		m.renderer.AttachMarker(mk)
	}
	return m.Markers()
}

func (m *Manager) handleClick(loc models.Location) {
	m.ClearPending()
	if m.onClick != nil {
		m.onClick(loc)
	}
}

// Clear detaches every location marker. The pending pin is kept.
func (m *Manager) Clear() {
	for _, mk := range m.markers {
		m.renderer.DetachMarker(mk)
	}
	m.markers = nil
	m.byID = make(map[string]*Marker)
}

// Count is the number of location markers.
func (m *Manager) Count() int {
	return len(m.markers)
}

// Markers returns the location markers in application order.
func (m *Manager) Markers() []*Marker {
	out := make([]*Marker, len(m.markers))
	copy(out, m.markers)
	return out
}

// Locations returns the locations currently on the map.
func (m *Manager) Locations() []models.Location {
	out := make([]models.Location, 0, len(m.markers))
	for _, mk := range m.markers {
		out = append(out, *mk.Location)
	}
	return out
}

// Get looks up a location marker.
func (m *Manager) Get(id string) (*Marker, bool) {
	mk, ok := m.byID[id]
	return mk, ok
}

// Click simulates a click on the marker with id.
func (m *Manager) Click(id string) error {
	mk, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMarker, id)
	}
	mk.Click()
	return nil
}

// SetPending places the "new location" pin, replacing any previous one.
func (m *Manager) SetPending(c geo.Coordinate) (*Marker, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	m.ClearPending()
	m.pending = &Marker{
		ID:       PendingID,
		Kind:     KindPending,
		Position: c,
		Title:    "New location",
		Color:    geo.MarkerColor(geo.CategoryCamp),
		visible:  true,
	}
	m.renderer.AttachMarker(m.pending)
	return m.pending, nil
}

// ClearPending removes the pending pin if present.
func (m *Manager) ClearPending() {
	if m.pending == nil {
		return
	}
	m.renderer.DetachMarker(m.pending)
	m.pending = nil
}

// Pending returns the pending pin or nil.
func (m *Manager) Pending() *Marker {
	return m.pending
}
