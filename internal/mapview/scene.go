// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package mapview

import (
	"github.com/tomtom215/kampai/internal/cluster"
	"github.com/tomtom215/kampai/internal/markers"
)

// SceneRenderer is the server-side stand-in for the map surface. It records
// what is attached, in attach order, and is serialized into frames.
type SceneRenderer struct {
	markers  []*markers.Marker
	clusters []*cluster.Cluster
}

// NewSceneRenderer returns an empty scene.
func NewSceneRenderer() *SceneRenderer {
	return &SceneRenderer{}
}

// AttachMarker implements markers.Renderer.
func (s *SceneRenderer) AttachMarker(m *markers.Marker) {
	s.markers = append(s.markers, m)
}

// DetachMarker implements markers.Renderer.
func (s *SceneRenderer) DetachMarker(m *markers.Marker) {
	for i, x := range s.markers {
		if x == m {
			s.markers = append(s.markers[:i], s.markers[i+1:]...)
			return
		}
	}
}

// AttachCluster implements cluster.Renderer.
func (s *SceneRenderer) AttachCluster(c *cluster.Cluster) {
	s.clusters = append(s.clusters, c)
}

// DetachCluster implements cluster.Renderer.
func (s *SceneRenderer) DetachCluster(c *cluster.Cluster) {
	for i, x := range s.clusters {
		if x == c {
			s.clusters = append(s.clusters[:i], s.clusters[i+1:]...)
			return
		}
	}
}

// Attached returns every attached marker, visible or not.
func (s *SceneRenderer) Attached() []*markers.Marker {
	out := make([]*markers.Marker, len(s.markers))
	copy(out, s.markers)
	return out
}

// snapshot converts the visible scene to its wire form.
func (s *SceneRenderer) snapshot() (pins []MarkerView, districts []MarkerView, clusters []ClusterView) {
	pins = make([]MarkerView, 0, len(s.markers))
	for _, m := range s.markers {
		if !m.Visible() {
			continue
		}
		v := markerView(m)
		if m.Kind == markers.KindDistrict {
			districts = append(districts, v)
			continue
		}
		pins = append(pins, v)
	}
	clusters = make([]ClusterView, 0, len(s.clusters))
	for _, c := range s.clusters {
		clusters = append(clusters, ClusterView{
			ID:        c.ID,
			Latitude:  c.Position.Lat,
			Longitude: c.Position.Lon,
			Count:     c.Count(),
		})
	}
	return pins, districts, clusters
}
