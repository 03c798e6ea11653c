// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package viewport tracks what a map client is looking at: center, zoom,
// pixel size and the derived geographic bounds.
package viewport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tomtom215/kampai/internal/geo"
)

// Zoom limits of the map.
const (
	MinZoom     = 0
	MaxZoom     = 20
	DefaultZoom = 15
)

// DefaultCenter is Tokyo Station.
var DefaultCenter = geo.Coordinate{Lat: 35.6812, Lon: 139.7671}

// ErrInvalidView is returned for out-of-range zoom, size or coordinates.
var ErrInvalidView = errors.New("invalid viewport")

// View is a snapshot of the viewport.
type View struct {
	Center geo.Coordinate  `json:"center"`
	Zoom   float64         `json:"zoom"`
	Width  int             `json:"width"`
	Height int             `json:"height"`
	Bounds geo.BoundingBox `json:"bounds"`
}

// Subscription identifies a listener registered with Subscribe.
type Subscription struct {
	id uint64
}

// Tracker holds the current view. Listeners are called synchronously after
// every accepted change, outside the tracker lock.
type Tracker struct {
	mu        sync.RWMutex
	view      View
	listeners map[uint64]func(View)
	nextID    uint64
}

// NewTracker starts at DefaultCenter and DefaultZoom with a width x height
// viewport.
func NewTracker(width, height int) *Tracker {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 768
	}
	return &Tracker{
		view: View{
			Center: DefaultCenter,
			Zoom:   DefaultZoom,
			Width:  width,
			Height: height,
			Bounds: geo.ViewBounds(DefaultCenter, DefaultZoom, width, height),
		},
		listeners: make(map[uint64]func(View)),
	}
}

func validZoom(z float64) bool {
	return z >= MinZoom && z <= MaxZoom
}

// SetView moves the camera. Bounds are derived with the Web Mercator
// projection. On error the previous view is kept.
func (t *Tracker) SetView(center geo.Coordinate, zoom float64, width, height int) (View, error) {
	if err := center.Validate(); err != nil {
		return t.View(), fmt.Errorf("%w: %v", ErrInvalidView, err)
	}
	if !validZoom(zoom) {
		return t.View(), fmt.Errorf("%w: zoom %v outside [%d, %d]", ErrInvalidView, zoom, MinZoom, MaxZoom)
	}
	if width <= 0 || height <= 0 {
		return t.View(), fmt.Errorf("%w: size %dx%d", ErrInvalidView, width, height)
	}
	v := View{
		Center: center,
		Zoom:   zoom,
		Width:  width,
		Height: height,
		Bounds: geo.ViewBounds(center, zoom, width, height),
	}
	t.set(v)
	return v, nil
}

// SetBounds accepts bounds computed by the client. The center follows the
// box and the pixel size is unchanged.
func (t *Tracker) SetBounds(b geo.BoundingBox, zoom float64) (View, error) {
	if err := b.Validate(); err != nil {
		return t.View(), fmt.Errorf("%w: %v", ErrInvalidView, err)
	}
	if !validZoom(zoom) {
		return t.View(), fmt.Errorf("%w: zoom %v outside [%d, %d]", ErrInvalidView, zoom, MinZoom, MaxZoom)
	}
	t.mu.RLock()
	v := t.view
	t.mu.RUnlock()

	v.Bounds = b
	v.Center = b.Center()
	v.Zoom = zoom
	t.set(v)
	return v, nil
}

func (t *Tracker) set(v View) {
	t.mu.Lock()
	t.view = v
	fns := make([]func(View), 0, len(t.listeners))
	for _, fn := range t.listeners {
		fns = append(fns, fn)
	}
	t.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// View returns the current snapshot.
func (t *Tracker) View() View {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.view
}

// Bounds returns the current geographic bounds.
func (t *Tracker) Bounds() geo.BoundingBox {
	return t.View().Bounds
}

// Zoom returns the current zoom.
func (t *Tracker) Zoom() float64 {
	return t.View().Zoom
}

// Center returns the current center.
func (t *Tracker) Center() geo.Coordinate {
	return t.View().Center
}

// Subscribe registers fn for every subsequent change.
func (t *Tracker) Subscribe(fn func(View)) Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.listeners[t.nextID] = fn
	return Subscription{id: t.nextID}
}

// Unsubscribe removes a listener. Unknown subscriptions are ignored.
func (t *Tracker) Unsubscribe(s Subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.listeners, s.id)
}
