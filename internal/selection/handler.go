// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package selection turns marker, cluster and map clicks into the selection
// shown in the info panel.
package selection

import (
	"sync"

	"github.com/tomtom215/kampai/internal/cluster"
	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/markers"
	"github.com/tomtom215/kampai/internal/models"
)

// Selection is what the info panel shows. At most one of Locations,
// District or a bare Position (new location form) is meaningful at a time.
type Selection struct {
	Locations []models.Location `json:"locations"`
	Position  *geo.Coordinate   `json:"position,omitempty"`
	District  string            `json:"district,omitempty"`
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return len(s.Locations) == 0 && s.Position == nil && s.District == ""
}

// Subscription identifies a listener.
type Subscription struct {
	id uint64
}

// Handler holds the current selection and notifies listeners on change.
type Handler struct {
	clusterer *cluster.Clusterer

	mu        sync.Mutex
	current   Selection
	listeners map[uint64]func(Selection)
	nextID    uint64
}

// NewHandler uses c to decide cluster clicks.
func NewHandler(c *cluster.Clusterer) *Handler {
	return &Handler{clusterer: c, listeners: make(map[uint64]func(Selection))}
}

// Current returns the selection.
func (h *Handler) Current() Selection {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// SelectMarker selects clicked and every candidate stacked on it.
func (h *Handler) SelectMarker(clicked models.Location, candidates []models.Location) Selection {
	pos := clicked.Coordinate()
	sel := Selection{Position: &pos}
	for _, c := range candidates {
		if markers.Stacked(pos, c.Coordinate()) {
			sel.Locations = append(sel.Locations, c)
		}
	}
	if len(sel.Locations) == 0 {
		sel.Locations = []models.Location{clicked}
	}
	h.set(sel)
	return sel
}

// ClickCluster decides what a cluster click does. For ActionExpand the
// members are selected as if their marker had been clicked; for ActionZoom
// the selection is left alone and the caller moves the camera.
func (h *Handler) ClickCluster(c *cluster.Cluster, zoom float64, width, height int) (cluster.ClickAction, Selection) {
	act := h.clusterer.Click(c, zoom, width, height)
	if act.Kind != cluster.ActionExpand {
		return act, h.Current()
	}

	pos := c.Position
	sel := Selection{Position: &pos}
	for _, m := range act.Members {
		if m.Location != nil {
			sel.Locations = append(sel.Locations, *m.Location)
		}
	}
	h.set(sel)
	return act, sel
}

// SelectDistrict selects a district from the izakaya layer.
func (h *Handler) SelectDistrict(district string) Selection {
	sel := Selection{District: district}
	h.set(sel)
	return sel
}

// SelectPosition selects an empty map point for the new location form.
func (h *Handler) SelectPosition(c geo.Coordinate) Selection {
	sel := Selection{Position: &c}
	h.set(sel)
	return sel
}

// Clear empties the selection.
func (h *Handler) Clear() {
	h.set(Selection{})
}

// Prune drops selected locations that are no longer in live, e.g. after a
// realtime delete.
func (h *Handler) Prune(live map[string]bool) {
	h.mu.Lock()
	if len(h.current.Locations) == 0 {
		h.mu.Unlock()
		return
	}
	kept := h.current.Locations[:0:0]
	for _, l := range h.current.Locations {
		if live[l.ID] {
			kept = append(kept, l)
		}
	}
	if len(kept) == len(h.current.Locations) {
		h.mu.Unlock()
		return
	}
	sel := h.current
	sel.Locations = kept
	if len(kept) == 0 {
		sel = Selection{}
	}
	h.mu.Unlock()
	h.set(sel)
}

func (h *Handler) set(sel Selection) {
	h.mu.Lock()
	h.current = sel
	fns := make([]func(Selection), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(sel)
	}
}

// Subscribe registers fn for every later change.
func (h *Handler) Subscribe(fn func(Selection)) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.listeners[h.nextID] = fn
	return Subscription{id: h.nextID}
}

// Unsubscribe removes a listener.
func (h *Handler) Unsubscribe(s Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners, s.id)
}
