// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package mapview

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/kampai/internal/debounce"
	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/metrics"
	"github.com/tomtom215/kampai/internal/models"
)

// Default timings of the bounds fetcher.
const (
	DefaultFetchDelay   = 500 * time.Millisecond
	DefaultFetchTimeout = 10 * time.Second
)

// Querier runs a bounds query. *locations.Service implements it.
type Querier interface {
	QueryBounds(ctx context.Context, b geo.BoundingBox, category geo.Category) ([]models.Location, error)
}

// FetchResult is the outcome of one fired fetch.
type FetchResult struct {
	Generation uint64
	Bounds     geo.BoundingBox
	Category   geo.Category
	Locations  []models.Location
	Err        error
}

// FetcherConfig wires a BoundsFetcher.
type FetcherConfig struct {
	Delay   time.Duration
	Timeout time.Duration
	// OnStart is called when a fetch fires, before the query runs.
	OnStart func(gen uint64, b geo.BoundingBox)
	// OnResult receives results of the latest generation only.
	OnResult func(FetchResult)
}

// BoundsFetcher debounces viewport changes into location queries. At most
// one query fires per quiet window, a newer query cancels the older one, and
// results of superseded queries are dropped before they reach OnResult.
type BoundsFetcher struct {
	querier Querier
	cfg     FetcherConfig
	timer   *debounce.Timer
	base    context.Context

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	closed bool
}

// NewBoundsFetcher creates a fetcher whose queries are children of ctx.
func NewBoundsFetcher(ctx context.Context, q Querier, cfg FetcherConfig) *BoundsFetcher {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultFetchDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	return &BoundsFetcher{
		querier: q,
		cfg:     cfg,
		timer:   debounce.New(cfg.Delay),
		base:    ctx,
	}
}

// Request schedules a query for b once the viewport has been quiet for the
// configured delay. A later Request replaces this one.
func (f *BoundsFetcher) Request(b geo.BoundingBox, category geo.Category) {
	f.timer.Start(func() { f.fire(b, category) })
}

// Trigger drops any scheduled query and fires one for b now.
func (f *BoundsFetcher) Trigger(b geo.BoundingBox, category geo.Category) {
	f.timer.Cancel()
	f.fire(b, category)
}

// Pending reports whether a debounced query is waiting.
func (f *BoundsFetcher) Pending() bool {
	return f.timer.Pending()
}

// Latest returns the generation of the most recently fired query.
func (f *BoundsFetcher) Latest() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

// IsCurrent reports whether gen is still the latest generation and the
// fetcher is open.
func (f *BoundsFetcher) IsCurrent(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed && gen == f.gen
}

// Cancel stops the timer and the in-flight query. No result is delivered
// afterwards.
func (f *BoundsFetcher) Cancel() {
	f.timer.Stop()
	f.mu.Lock()
	f.closed = true
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.mu.Unlock()
}

func (f *BoundsFetcher) fire(b geo.BoundingBox, category geo.Category) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if f.cancel != nil {
		f.cancel()
	}
	f.gen++
	gen := f.gen
	ctx, cancel := context.WithTimeout(f.base, f.cfg.Timeout)
	f.cancel = cancel
	f.mu.Unlock()

	if f.cfg.OnStart != nil {
		f.cfg.OnStart(gen, b)
	}

	go func() {
		defer cancel()
		start := time.Now()
		locs, err := f.querier.QueryBounds(ctx, b, category)
		metrics.BoundsFetchDuration.Observe(time.Since(start).Seconds())

		if !f.IsCurrent(gen) {
			metrics.BoundsFetchesTotal.WithLabelValues("stale").Inc()
			return
		}
		if err != nil {
			metrics.BoundsFetchesTotal.WithLabelValues("error").Inc()
		} else {
			metrics.BoundsFetchesTotal.WithLabelValues("ok").Inc()
		}
		if f.cfg.OnResult != nil {
			f.cfg.OnResult(FetchResult{
				Generation: gen,
				Bounds:     b,
				Category:   category,
				Locations:  locs,
				Err:        err,
			})
		}
	}()
}
