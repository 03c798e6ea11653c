// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package breaker builds the circuit breakers that wrap every outbound
// HTTP client (geocoding, weather, assistant, object storage).
package breaker

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/metrics"
)

// Settings tune a breaker. Zero values take the defaults below.
type Settings struct {
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval after which closed-state counts reset.
	Interval time.Duration
	// Timeout before an open breaker goes half-open.
	Timeout time.Duration
	// MinRequests before the failure ratio is considered.
	MinRequests uint32
	// FailureRatio at or above which the breaker opens.
	FailureRatio float64
}

// Defaults are tuned for user-facing lookups: recover faster than a sync job
// would, since a user is waiting.
var Defaults = Settings{
	MaxRequests:  3,
	Interval:     time.Minute,
	Timeout:      30 * time.Second,
	MinRequests:  5,
	FailureRatio: 0.6,
}

// New returns a breaker named name that reports transitions to the metrics
// registry. Context cancellation by the caller is not counted at all.
func New[T any](name string, s Settings) *gobreaker.CircuitBreaker[T] {
	if s.MaxRequests == 0 {
		s.MaxRequests = Defaults.MaxRequests
	}
	if s.Interval == 0 {
		s.Interval = Defaults.Interval
	}
	if s.Timeout == 0 {
		s.Timeout = Defaults.Timeout
	}
	if s.MinRequests == 0 {
		s.MinRequests = Defaults.MinRequests
	}
	if s.FailureRatio == 0 {
		s.FailureRatio = Defaults.FailureRatio
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	log := logging.WithComponent("breaker")

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < s.MinRequests {
				return false
			}
			ratio := float64(c.TotalFailures) / float64(c.Requests)
			if ratio >= s.FailureRatio {
				log.Warn().
					Str("breaker", name).
					Uint32("failures", c.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("Opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit state transition")
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
	})
}

// Rejected reports whether err came from an open or saturated breaker
// rather than from the wrapped call.
func Rejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
