// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package models defines the records exchanged between the stores, the map
// pipeline, the realtime feed and the HTTP/websocket API.
package models

import (
	"time"

	"github.com/tomtom215/kampai/internal/geo"
)

// Location is a place users can check in to.
//
// Coordinates are always valid and Category is always one of geo.Categories;
// both are enforced on creation and by the database schema.
type Location struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Category  geo.Category `json:"type"`
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	District  string       `json:"district,omitempty"`
	CreatedBy string       `json:"created_by"`
	CreatedAt time.Time    `json:"created_at"`
}

// Coordinate returns the location's position.
func (l Location) Coordinate() geo.Coordinate {
	return geo.Coordinate{Lat: l.Latitude, Lon: l.Longitude}
}

// Amenity flags for a location. At most one row exists per location.
type Amenity struct {
	ID            string    `json:"id"`
	LocationID    string    `json:"location_id"`
	HasShower     bool      `json:"has_shower"`
	HasPower      bool      `json:"has_power"`
	HasParking    bool      `json:"has_parking"`
	IsPetFriendly bool      `json:"is_pet_friendly"`
	HasWifi       bool      `json:"has_wifi"`
	CreatedAt     time.Time `json:"created_at"`
}

// AmenityInput is the amenity part of a location creation request.
type AmenityInput struct {
	Shower      bool `json:"shower"`
	Power       bool `json:"power"`
	Parking     bool `json:"parking"`
	PetFriendly bool `json:"pet_friendly"`
	Wifi        bool `json:"wifi"`
}

// CreateLocationInput is validated before anything is stored.
type CreateLocationInput struct {
	Name      string        `json:"name" validate:"required,max=120"`
	Category  geo.Category  `json:"type" validate:"required,oneof=camp hotel spot shop"`
	Latitude  float64       `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64       `json:"longitude" validate:"gte=-180,lte=180"`
	District  string        `json:"district,omitempty" validate:"max=120"`
	Amenities *AmenityInput `json:"amenities,omitempty"`
}

// LocationDetail is a location with its optional amenity row.
type LocationDetail struct {
	Location  Location `json:"location"`
	Amenities *Amenity `json:"amenities"`
}

// TrendingLocation is one row of the trending ranking.
type TrendingLocation struct {
	Location
	Amenities      *Amenity   `json:"amenities,omitempty"`
	ActivityCount  int        `json:"activity_count"`
	LikeCount      int        `json:"like_count"`
	LatestActivity *time.Time `json:"latest_activity,omitempty"`
}

// DistrictCluster aggregates the locations of one district inside a query box.
type DistrictCluster struct {
	District  string  `json:"district"`
	Count     int     `json:"count"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
