// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package detection

import (
	"context"
	"time"

	"github.com/tomtom215/kampai/internal/models"
)

// RuleType identifies a detection rule.
type RuleType string

const RuleTypeImpossibleTravel RuleType = "impossible_travel"

// Alert is one rule violation.
type Alert struct {
	RuleType  RuleType                 `json:"rule_type"`
	UserID    string                   `json:"user_id"`
	CampLogID string                   `json:"camp_log_id"`
	Title     string                   `json:"title"`
	Message   string                   `json:"message"`
	Metadata  ImpossibleTravelMetadata `json:"metadata"`
	CreatedAt time.Time                `json:"created_at"`
}

// ImpossibleTravelMetadata describes the two check-ins of an alert.
type ImpossibleTravelMetadata struct {
	FromLocationID string    `json:"from_location_id"`
	FromLatitude   float64   `json:"from_latitude"`
	FromLongitude  float64   `json:"from_longitude"`
	FromTimestamp  time.Time `json:"from_timestamp"`
	ToLocationID   string    `json:"to_location_id"`
	ToLatitude     float64   `json:"to_latitude"`
	ToLongitude    float64   `json:"to_longitude"`
	ToTimestamp    time.Time `json:"to_timestamp"`
	DistanceKm     float64   `json:"distance_km"`
	TimeDeltaMins  float64   `json:"time_delta_minutes"`
	RequiredSpeed  float64   `json:"required_speed_kmh"`
}

// ImpossibleTravelConfig tunes ImpossibleTravelDetector.
type ImpossibleTravelConfig struct {
	MaxSpeedKmH   float64 `json:"max_speed_kmh"`
	MinDistanceKm float64 `json:"min_distance_km"`
}

// DefaultImpossibleTravelConfig allows air travel and ignores hops under
// 100 km.
func DefaultImpossibleTravelConfig() ImpossibleTravelConfig {
	return ImpossibleTravelConfig{
		MaxSpeedKmH:   900,
		MinDistanceKm: 100,
	}
}

// History looks up earlier check-ins.
type History interface {
	PreviousCheckIn(ctx context.Context, userID string, before time.Time, excludeID string) (*models.CheckInPosition, error)
}
