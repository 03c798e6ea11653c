// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/locations"
	"github.com/tomtom215/kampai/internal/models"
)

// benchOptions are the bench flags. The default area is roughly Japan.
type benchOptions struct {
	Points  int
	Queries int
	Workers int
	BoxSize float64
	Seed    int64
	MinLat  float64
	MaxLat  float64
	MinLon  float64
	MaxLon  float64
}

// BenchResult summarizes one benchmark run.
type BenchResult struct {
	Points        int           `json:"points"`
	LoadTime      time.Duration `json:"load_time_ns"`
	Queries       int           `json:"queries"`
	Failed        int64         `json:"failed"`
	TotalResults  int64         `json:"total_results"`
	QueryTime     time.Duration `json:"query_time_ns"`
	QueriesPerSec float64       `json:"queries_per_sec"`
	MinQuery      time.Duration `json:"min_query_ns"`
	MaxQuery      time.Duration `json:"max_query_ns"`
	Workers       int           `json:"workers"`
}

func newBenchCmd() *cobra.Command {
	o := benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark bounding-box queries on the in-memory spatial index",
		Long: `Load random locations into the R-tree store used for single-node setups and
run concurrent bounding-box queries against it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := runBench(cmd.Context(), o)
			if err != nil {
				return err
			}
			return printBench(cmd.OutOrStdout(), res)
		},
	}
	fl := cmd.Flags()
	fl.IntVarP(&o.Points, "points", "p", 100000, "Number of locations to load")
	fl.IntVarP(&o.Queries, "queries", "q", 1000, "Number of queries to run")
	fl.IntVarP(&o.Workers, "workers", "w", runtime.NumCPU(), "Number of concurrent workers")
	fl.Float64Var(&o.BoxSize, "box-size", 0.5, "Query box size in degrees")
	fl.Int64Var(&o.Seed, "seed", time.Now().UnixNano(), "Random seed")
	fl.Float64Var(&o.MinLat, "min-lat", 30.0, "Minimum latitude")
	fl.Float64Var(&o.MaxLat, "max-lat", 45.0, "Maximum latitude")
	fl.Float64Var(&o.MinLon, "min-lon", 129.0, "Minimum longitude")
	fl.Float64Var(&o.MaxLon, "max-lon", 146.0, "Maximum longitude")
	return cmd
}

func runBench(ctx context.Context, o benchOptions) (BenchResult, error) {
	if o.Points <= 0 || o.Queries <= 0 {
		return BenchResult{}, fmt.Errorf("points and queries must be positive")
	}
	if o.MaxLat-o.MinLat < o.BoxSize || o.MaxLon-o.MinLon < o.BoxSize {
		return BenchResult{}, fmt.Errorf("box size %.3f does not fit the area", o.BoxSize)
	}
	if o.Workers < 1 {
		o.Workers = 1
	}

	r := rand.New(rand.NewSource(o.Seed))
	locs := randomLocations(r, o)

	store := locations.NewMemoryStore()
	start := time.Now()
	store.Load(locs)
	res := BenchResult{Points: store.Len(), LoadTime: time.Since(start), Queries: o.Queries, Workers: o.Workers}

	boxes := make([]geo.BoundingBox, o.Queries)
	for i := range boxes {
		lat := o.MinLat + r.Float64()*(o.MaxLat-o.MinLat-o.BoxSize)
		lon := o.MinLon + r.Float64()*(o.MaxLon-o.MinLon-o.BoxSize)
		b, err := geo.NewBoundingBox(lat, lon, lat+o.BoxSize, lon+o.BoxSize)
		if err != nil {
			return BenchResult{}, err
		}
		boxes[i] = b
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		total    atomic.Int64
		failed   atomic.Int64
		minQuery = time.Duration(1<<63 - 1)
		maxQuery time.Duration
	)
	work := make(chan geo.BoundingBox)
	start = time.Now()
	for w := 0; w < o.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range work {
				t := time.Now()
				found, err := store.FindInBounds(ctx, b, "")
				d := time.Since(t)
				if err != nil {
					failed.Add(1)
					continue
				}
				total.Add(int64(len(found)))
				mu.Lock()
				minQuery = min(minQuery, d)
				maxQuery = max(maxQuery, d)
				mu.Unlock()
			}
		}()
	}
	for _, b := range boxes {
		work <- b
	}
	close(work)
	wg.Wait()

	res.QueryTime = time.Since(start)
	res.TotalResults = total.Load()
	res.Failed = failed.Load()
	res.QueriesPerSec = float64(o.Queries) / res.QueryTime.Seconds()
	if res.Failed < int64(o.Queries) {
		res.MinQuery, res.MaxQuery = minQuery, maxQuery
	}
	return res, nil
}

func randomLocations(r *rand.Rand, o benchOptions) []models.Location {
	locs := make([]models.Location, o.Points)
	created := time.Now().UTC()
	for i := range locs {
		locs[i] = models.Location{
			ID:        fmt.Sprintf("bench-%d", i),
			Name:      fmt.Sprintf("Location %d", i),
			Category:  geo.Categories[r.Intn(len(geo.Categories))],
			Latitude:  o.MinLat + r.Float64()*(o.MaxLat-o.MinLat),
			Longitude: o.MinLon + r.Float64()*(o.MaxLon-o.MinLon),
			CreatedBy: "bench",
			CreatedAt: created.Add(-time.Duration(i) * time.Second),
		}
	}
	return locs
}

func printBench(w io.Writer, res BenchResult) error {
	if outputJSON {
		return writeJSON(w, res)
	}
	avg := 0.0
	if n := res.Queries - int(res.Failed); n > 0 {
		avg = float64(res.TotalResults) / float64(n)
	}
	_, err := fmt.Fprintf(w, `=== Benchmark Results ===
Locations loaded:  %d in %v
Queries:           %d (%d failed)
Total duration:    %v
Queries/second:    %.2f
Min query:         %v
Max query:         %v
Avg results/query: %.2f
Workers:           %d
`,
		res.Points, res.LoadTime, res.Queries, res.Failed, res.QueryTime,
		res.QueriesPerSec, res.MinQuery, res.MaxQuery, avg, res.Workers)
	return err
}
