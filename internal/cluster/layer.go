// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package cluster

import (
	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/markers"
)

// Renderer draws cluster pins.
type Renderer interface {
	AttachCluster(c *Cluster)
	DetachCluster(c *Cluster)
}

// Layer keeps the rendered clusters in step with the marker set. Like
// markers.Manager it belongs to one session goroutine.
type Layer struct {
	clusterer *Clusterer
	renderer  Renderer
	current   Result
	byID      map[string]*Cluster
}

// NewLayer draws clusters computed by c on r.
func NewLayer(c *Clusterer, r Renderer) *Layer {
	return &Layer{clusterer: c, renderer: r, byID: make(map[string]*Cluster)}
}

// Render removes the previous clusters, regroups ms at zoom and draws the
// new clusters. Members of a cluster are hidden; singles are visible.
func (l *Layer) Render(ms []*markers.Marker, zoom float64) Result {
	l.Clear()

	for _, m := range ms {
		m.SetVisible(true)
	}
	res := l.clusterer.Cluster(ms, zoom)
	for _, c := range res.Clusters {
		for _, m := range c.Members {
			m.SetVisible(false)
		}
		l.byID[c.ID] = c
		l.renderer.AttachCluster(c)
	}
	l.current = res
	return res
}

// Clear detaches every cluster and shows their members again.
func (l *Layer) Clear() {
	for _, c := range l.current.Clusters {
		l.renderer.DetachCluster(c)
		for _, m := range c.Members {
			m.SetVisible(true)
		}
	}
	l.current = Result{}
	l.byID = make(map[string]*Cluster)
}

// Current returns the last result.
func (l *Layer) Current() Result {
	return l.current
}

// Get looks up a rendered cluster.
func (l *Layer) Get(id string) (*Cluster, bool) {
	c, ok := l.byID[id]
	return c, ok
}

// ActionKind is the outcome of a cluster click.
type ActionKind string

const (
	// ActionZoom fits the camera to the cluster bounds.
	ActionZoom ActionKind = "zoom"
	// ActionExpand hands the members to marker selection; zooming further
	// would not separate them.
	ActionExpand ActionKind = "expand"
)

// ClickAction tells the session what a cluster click should do.
type ClickAction struct {
	Kind    ActionKind
	Center  geo.Coordinate
	Zoom    int
	Bounds  geo.BoundingBox
	Members []*markers.Marker
}

// Click decides between zooming to the cluster and expanding it. width and
// height are the viewport size in pixels.
func (c *Clusterer) Click(cl *Cluster, zoom float64, width, height int) ClickAction {
	if zoom >= float64(c.MaxZoom) || cl.Stacked() {
		return ClickAction{
			Kind:    ActionExpand,
			Center:  cl.Position,
			Zoom:    int(zoom),
			Bounds:  cl.Bounds,
			Members: cl.Members,
		}
	}

	z := geo.FitZoom(cl.Bounds, width, height, c.MaxZoom)
	if float64(z) <= zoom {
		z = int(zoom) + 1
	}
	if z > c.MaxZoom {
		z = c.MaxZoom
	}
	return ClickAction{
		Kind:    ActionZoom,
		Center:  cl.Bounds.Center(),
		Zoom:    z,
		Bounds:  cl.Bounds,
		Members: cl.Members,
	}
}
