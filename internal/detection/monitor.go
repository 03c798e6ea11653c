// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package detection

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/metrics"
	"github.com/tomtom215/kampai/internal/models"
	"github.com/tomtom215/kampai/internal/realtime"
)

// Subscriber is the part of realtime.Feed the monitor needs.
type Subscriber interface {
	Subscribe(ctx context.Context, filter realtime.Filter) (*realtime.Subscription, error)
}

// LocationStore resolves a check-in's location.
type LocationStore interface {
	GetLocation(ctx context.Context, id string) (*models.Location, error)
}

// Monitor runs the detector over every new check-in.
type Monitor struct {
	feed      Subscriber
	locations LocationStore
	detector  *ImpossibleTravelDetector
	sinks     []func(Alert)
}

// NewMonitor creates a monitor. Each alert is passed to every sink.
func NewMonitor(feed Subscriber, locations LocationStore, detector *ImpossibleTravelDetector, sinks ...func(Alert)) *Monitor {
	return &Monitor{feed: feed, locations: locations, detector: detector, sinks: sinks}
}

func (m *Monitor) String() string { return "checkin-monitor" }

// Serve implements suture.Service.
func (m *Monitor) Serve(ctx context.Context) error {
	sub, err := m.feed.Subscribe(ctx, realtime.Filter{
		Table:  realtime.TableCampLogs,
		Events: []realtime.EventType{realtime.EventInsert},
	})
	if err != nil {
		return fmt.Errorf("subscribe to check-ins: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-sub.C:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("check-in feed closed")
			}
			m.handle(ctx, change)
		}
	}
}

func (m *Monitor) handle(ctx context.Context, change realtime.Change) {
	var log models.CampLog
	if err := change.Decode(&log); err != nil {
		logging.Warn().Err(err).Str("change_id", change.ID).Msg("Skipping undecodable check-in")
		return
	}
	alert, err := m.Process(ctx, log)
	if err != nil {
		logging.Warn().Err(err).Str("camp_log_id", log.ID).Msg("Check-in detection failed")
		return
	}
	if alert == nil {
		return
	}

	metrics.DetectionAlerts.WithLabelValues(string(alert.RuleType)).Inc()
	logging.Warn().
		Str("rule", string(alert.RuleType)).
		Str("user_id", alert.UserID).
		Str("camp_log_id", alert.CampLogID).
		Float64("speed_kmh", alert.Metadata.RequiredSpeed).
		Msg(alert.Title)
	for _, sink := range m.sinks {
		sink(*alert)
	}
}

// Process runs the detector for one check-in.
func (m *Monitor) Process(ctx context.Context, log models.CampLog) (*Alert, error) {
	loc, err := m.locations.GetLocation(ctx, log.LocationID)
	if err != nil {
		return nil, fmt.Errorf("get location %s: %w", log.LocationID, err)
	}
	return m.detector.Check(ctx, models.CheckInPosition{
		CampLogID:  log.ID,
		UserID:     log.UserID,
		LocationID: log.LocationID,
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
		CreatedAt:  log.CreatedAt,
	})
}
