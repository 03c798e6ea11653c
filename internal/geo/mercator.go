// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package geo

import "math"

// TileSize is the Web Mercator tile edge in pixels.
const TileSize = 256

// MaxMercatorLat is the latitude limit of the square Web Mercator world.
const MaxMercatorLat = 85.05112878

// Point is a position in world pixel space at a given zoom.
type Point struct {
	X, Y float64
}

func worldSize(zoom float64) float64 {
	return TileSize * math.Pow(2, zoom)
}

// Project maps c to world pixels at zoom (EPSG:3857).
func Project(c Coordinate, zoom float64) Point {
	lat := math.Max(-MaxMercatorLat, math.Min(MaxMercatorLat, c.Lat))
	size := worldSize(zoom)
	sin := math.Sin(lat * math.Pi / 180)
	return Point{
		X: (c.Lon + 180) / 360 * size,
		Y: (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * size,
	}
}

// Unproject is the inverse of Project.
func Unproject(p Point, zoom float64) Coordinate {
	size := worldSize(zoom)
	lon := p.X/size*360 - 180
	n := math.Pi - 2*math.Pi*p.Y/size
	lat := 180 / math.Pi * math.Atan(0.5*(math.Exp(n)-math.Exp(-n)))
	return Coordinate{Lat: lat, Lon: lon}
}

// ViewBounds returns the geographic box covered by a width x height pixel
// viewport centered on center at zoom. The result is clamped to the globe.
func ViewBounds(center Coordinate, zoom float64, width, height int) BoundingBox {
	cp := Project(center, zoom)
	halfW, halfH := float64(width)/2, float64(height)/2

	sw := Unproject(Point{X: cp.X - halfW, Y: cp.Y + halfH}, zoom)
	ne := Unproject(Point{X: cp.X + halfW, Y: cp.Y - halfH}, zoom)

	sw.Lon = math.Max(-180, sw.Lon)
	ne.Lon = math.Min(180, ne.Lon)
	sw.Lat = math.Max(-MaxMercatorLat, sw.Lat)
	ne.Lat = math.Min(MaxMercatorLat, ne.Lat)
	return BoundingBox{SouthWest: sw, NorthEast: ne}
}

// FitZoom returns the largest integer zoom at which b fits inside a
// width x height viewport, capped at maxZoom.
func FitZoom(b BoundingBox, width, height int, maxZoom int) int {
	for z := maxZoom; z > 0; z-- {
		sw := Project(b.SouthWest, float64(z))
		ne := Project(b.NorthEast, float64(z))
		if math.Abs(ne.X-sw.X) <= float64(width) && math.Abs(sw.Y-ne.Y) <= float64(height) {
			return z
		}
	}
	return 0
}
