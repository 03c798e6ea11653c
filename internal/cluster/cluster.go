// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package cluster groups nearby markers at the current zoom.
//
// Grouping is greedy in screen space: markers are visited in order and each
// joins the nearest existing cluster whose seed is within GridSize pixels on
// both axes, otherwise it seeds a new one. Groups smaller than MinClusterSize
// are returned as single markers, so every marker is accounted for exactly
// once.
package cluster

import (
	"strconv"

	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/markers"
)

// Defaults of the clusterer.
const (
	DefaultGridSize       = 60
	DefaultMinClusterSize = 2
	DefaultMaxZoom        = 20
)

// Cluster is a group of markers drawn as one counted pin.
type Cluster struct {
	ID       string
	Position geo.Coordinate
	Bounds   geo.BoundingBox
	Members  []*markers.Marker

	seed geo.Point
}

// Count is the number of member markers.
func (c *Cluster) Count() int {
	return len(c.Members)
}

// Stacked reports whether every member sits on the same point.
func (c *Cluster) Stacked() bool {
	if len(c.Members) == 0 {
		return false
	}
	first := c.Members[0].Position
	for _, m := range c.Members[1:] {
		if !markers.Stacked(first, m.Position) {
			return false
		}
	}
	return true
}

// Result is the output of one clustering pass.
type Result struct {
	Clusters []*Cluster
	Singles  []*markers.Marker
}

// Total is the number of markers represented by the result.
func (r Result) Total() int {
	n := len(r.Singles)
	for _, c := range r.Clusters {
		n += c.Count()
	}
	return n
}

// Clusterer holds the grouping parameters.
type Clusterer struct {
	GridSize       float64
	MinClusterSize int
	MaxZoom        int
}

// New returns a clusterer with the defaults.
func New() *Clusterer {
	return &Clusterer{
		GridSize:       DefaultGridSize,
		MinClusterSize: DefaultMinClusterSize,
		MaxZoom:        DefaultMaxZoom,
	}
}

// Cluster groups ms at zoom. At or above MaxZoom nothing is grouped.
func (c *Clusterer) Cluster(ms []*markers.Marker, zoom float64) Result {
	minSize := c.MinClusterSize
	if minSize < 2 {
		minSize = 2
	}
	if zoom >= float64(c.MaxZoom) || len(ms) < minSize {
		return Result{Singles: append([]*markers.Marker(nil), ms...)}
	}

	grid := newPixelGrid(c.GridSize)
	var groups []*Cluster
	for _, m := range ms {
		p := geo.Project(m.Position, zoom)
		if g := grid.nearest(p); g != nil {
			g.Members = append(g.Members, m)
			continue
		}
		g := &Cluster{seed: p, Members: []*markers.Marker{m}}
		grid.insert(g)
		groups = append(groups, g)
	}

	var res Result
	for _, g := range groups {
		if len(g.Members) < minSize {
			res.Singles = append(res.Singles, g.Members...)
			continue
		}
		coords := make([]geo.Coordinate, len(g.Members))
		var lat, lon float64
		for i, m := range g.Members {
			coords[i] = m.Position
			lat += m.Position.Lat
			lon += m.Position.Lon
		}
		n := float64(len(g.Members))
		g.Position = geo.Coordinate{Lat: lat / n, Lon: lon / n}
		g.Bounds = geo.BoundsOf(coords)
		g.ID = "cluster:" + strconv.Itoa(len(res.Clusters))
		res.Clusters = append(res.Clusters, g)
	}
	return res
}
