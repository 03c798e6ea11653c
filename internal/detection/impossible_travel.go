// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package detection

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/models"
)

// ImpossibleTravelDetector compares a check-in with the user's previous one.
type ImpossibleTravelDetector struct {
	config  ImpossibleTravelConfig
	history History
}

// NewImpossibleTravelDetector creates a detector. Zero config fields take the
// defaults.
func NewImpossibleTravelDetector(history History, config ImpossibleTravelConfig) *ImpossibleTravelDetector {
	def := DefaultImpossibleTravelConfig()
	if config.MaxSpeedKmH <= 0 {
		config.MaxSpeedKmH = def.MaxSpeedKmH
	}
	if config.MinDistanceKm < 0 {
		config.MinDistanceKm = def.MinDistanceKm
	}
	return &ImpossibleTravelDetector{config: config, history: history}
}

// Type returns the rule type.
func (d *ImpossibleTravelDetector) Type() RuleType {
	return RuleTypeImpossibleTravel
}

// Check returns an alert when event cannot follow the previous check-in, or
// nil.
func (d *ImpossibleTravelDetector) Check(ctx context.Context, event models.CheckInPosition) (*Alert, error) {
	last, err := d.history.PreviousCheckIn(ctx, event.UserID, event.CreatedAt, event.CampLogID)
	if err != nil {
		return nil, fmt.Errorf("failed to get previous check-in: %w", err)
	}
	if last == nil {
		return nil, nil
	}

	timeDelta := event.CreatedAt.Sub(last.CreatedAt)
	if timeDelta < 0 {
		return nil, nil
	}
	distanceKm := geo.DistanceKm(
		geo.Coordinate{Lat: last.Latitude, Lon: last.Longitude},
		geo.Coordinate{Lat: event.Latitude, Lon: event.Longitude},
	)
	if distanceKm < d.config.MinDistanceKm {
		return nil, nil
	}

	// Same-instant check-ins far apart get an effectively infinite speed.
	hours := math.Max(timeDelta.Hours(), 1e-6)
	speed := distanceKm / hours
	if speed <= d.config.MaxSpeedKmH {
		return nil, nil
	}

	return &Alert{
		RuleType:  RuleTypeImpossibleTravel,
		UserID:    event.UserID,
		CampLogID: event.CampLogID,
		Title:     "Impossible Travel Detected",
		Message: fmt.Sprintf("Checked in %.0f km from the previous check-in after %.0f minutes (would require %.0f km/h)",
			distanceKm, timeDelta.Minutes(), speed),
		Metadata: ImpossibleTravelMetadata{
			FromLocationID: last.LocationID,
			FromLatitude:   last.Latitude,
			FromLongitude:  last.Longitude,
			FromTimestamp:  last.CreatedAt,
			ToLocationID:   event.LocationID,
			ToLatitude:     event.Latitude,
			ToLongitude:    event.Longitude,
			ToTimestamp:    event.CreatedAt,
			DistanceKm:     roundTo2Decimals(distanceKm),
			TimeDeltaMins:  roundTo2Decimals(timeDelta.Minutes()),
			RequiredSpeed:  roundTo2Decimals(speed),
		},
		CreatedAt: time.Now().UTC(),
	}, nil
}

func roundTo2Decimals(v float64) float64 {
	return math.Round(v*100) / 100
}
