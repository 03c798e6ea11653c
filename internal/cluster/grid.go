// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package cluster

import (
	"math"

	"github.com/tomtom215/kampai/internal/geo"
)

// cellKey addresses one grid cell in world pixel space.
type cellKey struct {
	X, Y int
}

// pixelGrid is a spatial hash over cluster seeds. Each seed is stored in the
// cell containing its pixel position, so a lookup only scans the 3x3 block of
// cells around a point instead of every cluster.
type pixelGrid struct {
	size  float64
	cells map[cellKey][]*Cluster
}

func newPixelGrid(size float64) *pixelGrid {
	return &pixelGrid{size: size, cells: make(map[cellKey][]*Cluster)}
}

func (g *pixelGrid) key(p geo.Point) cellKey {
	return cellKey{X: int(math.Floor(p.X / g.size)), Y: int(math.Floor(p.Y / g.size))}
}

func (g *pixelGrid) insert(c *Cluster) {
	k := g.key(c.seed)
	g.cells[k] = append(g.cells[k], c)
}

// nearest returns the cluster whose seed square (seed +/- size on each axis)
// contains p and whose seed is closest to p, or nil.
func (g *pixelGrid) nearest(p geo.Point) *Cluster {
	center := g.key(p)
	var best *Cluster
	bestDist := math.Inf(1)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for _, c := range g.cells[cellKey{X: center.X + dx, Y: center.Y + dy}] {
				ddx, ddy := math.Abs(c.seed.X-p.X), math.Abs(c.seed.Y-p.Y)
				if ddx > g.size || ddy > g.size {
					continue
				}
				if d := ddx*ddx + ddy*ddy; d < bestDist {
					best, bestDist = c, d
				}
			}
		}
	}
	return best
}
