// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package markers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/models"
)

// recorder is a Renderer that tracks what is attached.
type recorder struct {
	attached map[*Marker]bool
	attaches int
	detaches int
}

func newRecorder() *recorder {
	return &recorder{attached: make(map[*Marker]bool)}
}

func (r *recorder) AttachMarker(m *Marker) {
	r.attached[m] = true
	r.attaches++
}

func (r *recorder) DetachMarker(m *Marker) {
	delete(r.attached, m)
	r.detaches++
}

func locs(n int, cat geo.Category) []models.Location {
	out := make([]models.Location, n)
	for i := range out {
		out[i] = models.Location{
			ID:        fmt.Sprintf("%s-%d", cat, i),
			Name:      fmt.Sprintf("place %d", i),
			Category:  cat,
			Latitude:  35 + float64(i)*0.01,
			Longitude: 139 + float64(i)*0.01,
		}
	}
	return out
}

func TestApplyReplacesMarkers(t *testing.T) {
	t.Parallel()

	r := newRecorder()
	m := NewManager(r, nil)

	first := m.Apply(locs(5, geo.CategoryCamp))
	if m.Count() != 5 || len(r.attached) != 5 {
		t.Fatalf("Count() = %d attached = %d, want 5", m.Count(), len(r.attached))
	}

	m.Apply(locs(2, geo.CategoryShop))
	if m.Count() != 2 || len(r.attached) != 2 {
		t.Errorf("Count() = %d attached = %d, want 2", m.Count(), len(r.attached))
	}
	for _, old := range first {
		if r.attached[old] {
			t.Errorf("marker %s from an earlier result is still attached", old.ID)
		}
	}

	m.Apply(nil)
	if m.Count() != 0 || len(r.attached) != 0 {
		t.Errorf("after empty Apply: Count() = %d attached = %d", m.Count(), len(r.attached))
	}
}

func TestMarkerColors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cat  geo.Category
		want string
	}{
		{geo.CategoryCamp, "#22C55E"},
		{geo.CategoryHotel, "#0EA5E9"},
		{geo.CategorySpot, "#EAB308"},
		{geo.CategoryShop, "#EC4899"},
		{"", "#6B7280"},
	}
	for _, tt := range tests {
		mk := NewLocationMarker(models.Location{ID: "x", Category: tt.cat}, nil)
		if mk.Color != tt.want {
			t.Errorf("color(%q) = %s, want %s", tt.cat, mk.Color, tt.want)
		}
	}
}

func TestClickCapturesOwnLocation(t *testing.T) {
	t.Parallel()

	var clicked []models.Location
	m := NewManager(newRecorder(), func(l models.Location) { clicked = append(clicked, l) })

	input := locs(3, geo.CategorySpot)
	m.Apply(input)
	input[1].Name = "mutated after apply"

	if err := m.Click("spot-1"); err != nil {
		t.Fatal(err)
	}
	if err := m.Click("spot-2"); err != nil {
		t.Fatal(err)
	}
	if len(clicked) != 2 || clicked[0].ID != "spot-1" || clicked[1].ID != "spot-2" {
		t.Fatalf("clicked = %+v", clicked)
	}
	if clicked[0].Name != "place 1" {
		t.Errorf("handler saw %q, want the value captured at construction", clicked[0].Name)
	}

	if err := m.Click("nope"); !errors.Is(err, ErrUnknownMarker) {
		t.Errorf("Click(unknown) error = %v, want ErrUnknownMarker", err)
	}
}

func TestPendingPin(t *testing.T) {
	t.Parallel()

	r := newRecorder()
	m := NewManager(r, nil)
	m.Apply(locs(1, geo.CategoryCamp))

	p, err := m.SetPending(geo.Coordinate{Lat: 35.5, Lon: 139.5})
	if err != nil {
		t.Fatal(err)
	}
	if !r.attached[p] || m.Pending() != p {
		t.Fatal("pending pin not attached")
	}

	p2, _ := m.SetPending(geo.Coordinate{Lat: 35.6, Lon: 139.6})
	if r.attached[p] || !r.attached[p2] {
		t.Error("SetPending should replace the previous pin")
	}

	m.Apply(locs(2, geo.CategoryCamp))
	if !r.attached[p2] {
		t.Error("Apply must not remove the pending pin")
	}

	if err := m.Click("camp-0"); err != nil {
		t.Fatal(err)
	}
	if m.Pending() != nil || r.attached[p2] {
		t.Error("marker click should clear the pending pin")
	}

	if _, err := m.SetPending(geo.Coordinate{Lat: 100}); err == nil {
		t.Error("SetPending(invalid) error = nil")
	}
}

func TestStacked(t *testing.T) {
	t.Parallel()

	a := geo.Coordinate{Lat: 35.68, Lon: 139.76}
	if !Stacked(a, geo.Coordinate{Lat: 35.68005, Lon: 139.76005}) {
		t.Error("points 0.00005 apart should be stacked")
	}
	if Stacked(a, geo.Coordinate{Lat: 35.6802, Lon: 139.76}) {
		t.Error("points 0.0002 apart should not be stacked")
	}
}

func TestDistrictMarker(t *testing.T) {
	t.Parallel()

	var got string
	mk := NewDistrictMarker(models.DistrictCluster{District: "Ebisu", Count: 12, Latitude: 35.64, Longitude: 139.71},
		func(c models.DistrictCluster) { got = c.District })
	if mk.Color != geo.ColorDistrict || mk.Glyph != "12" || mk.Kind != KindDistrict {
		t.Errorf("marker = %+v", mk)
	}
	mk.Click()
	if got != "Ebisu" {
		t.Errorf("click delivered %q", got)
	}
}
