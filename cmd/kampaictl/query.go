// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/kampai/internal/config"
	"github.com/tomtom215/kampai/internal/database"
	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/locations"
	"github.com/tomtom215/kampai/internal/models"
)

type queryFlags struct {
	dbPath   string
	minLat   float64
	minLon   float64
	maxLat   float64
	maxLon   float64
	category string
	offset   int
	all      bool
	timeout  time.Duration
}

func newQueryCmd() *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run map queries against a database file",
		Long: `Open the DuckDB file read by the server and run the same queries the
map uses. DuckDB allows one writer, so point --db at a copy or stop the
server first.`,
	}
	cmd.PersistentFlags().StringVar(&f.dbPath, "db", "", "Database path (default: DUCKDB_PATH from configuration)")
	cmd.PersistentFlags().DurationVar(&f.timeout, "timeout", 30*time.Second, "Query timeout")

	boxFlags := func(c *cobra.Command) {
		c.Flags().Float64Var(&f.minLat, "min-lat", 0, "Minimum latitude")
		c.Flags().Float64Var(&f.minLon, "min-lon", 0, "Minimum longitude")
		c.Flags().Float64Var(&f.maxLat, "max-lat", 0, "Maximum latitude")
		c.Flags().Float64Var(&f.maxLon, "max-lon", 0, "Maximum longitude")
		for _, name := range []string{"min-lat", "min-lon", "max-lat", "max-lon"} {
			_ = c.MarkFlagRequired(name)
		}
	}

	bounds := &cobra.Command{
		Use:   "bounds",
		Short: "List locations inside a bounding box",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd, func(ctx context.Context, svc *locations.Service) (any, error) {
				b, err := f.box()
				if err != nil {
					return nil, err
				}
				c, err := geo.ParseCategory(f.category)
				if err != nil {
					return nil, err
				}
				return svc.QueryBounds(ctx, b, c)
			})
		},
	}
	boxFlags(bounds)
	bounds.Flags().StringVar(&f.category, "category", "", "Restrict to one category (camp, hotel, spot, shop)")

	trending := &cobra.Command{
		Use:   "trending",
		Short: "List trending locations, one page or the whole ranking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd, func(ctx context.Context, svc *locations.Service) (any, error) {
				c, err := geo.ParseCategory(f.category)
				if err != nil {
					return nil, err
				}
				if f.all {
					return allTrending(ctx, svc, c)
				}
				return svc.Trending(ctx, c, f.offset)
			})
		},
	}
	trending.Flags().StringVar(&f.category, "category", "", "Restrict to one category")
	trending.Flags().IntVar(&f.offset, "offset", 0, "Page offset")
	trending.Flags().BoolVar(&f.all, "all", false, "Page through the whole ranking")
	trending.MarkFlagsMutuallyExclusive("offset", "all")

	districts := &cobra.Command{
		Use:   "districts",
		Short: "Count locations per district inside a bounding box",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd, func(ctx context.Context, svc *locations.Service) (any, error) {
				b, err := f.box()
				if err != nil {
					return nil, err
				}
				return svc.Districts(ctx, b)
			})
		},
	}
	boxFlags(districts)

	cmd.AddCommand(bounds, trending, districts)
	return cmd
}

// allTrending pages through the ranking until a short page, without
// repeating a location that moved between pages.
func allTrending(ctx context.Context, svc *locations.Service, c geo.Category) ([]models.TrendingLocation, error) {
	feed := locations.NewTrendingFeed(svc, c)
	if err := feed.Refresh(ctx); err != nil {
		return nil, err
	}
	for feed.HasMore() {
		if err := feed.LoadMore(ctx); err != nil {
			return nil, err
		}
	}
	return feed.Items(), nil
}

func (f *queryFlags) box() (geo.BoundingBox, error) {
	return geo.NewBoundingBox(f.minLat, f.minLon, f.maxLat, f.maxLon)
}

func (f *queryFlags) run(cmd *cobra.Command, query func(context.Context, *locations.Service) (any, error)) error {
	dbCfg, err := f.databaseConfig()
	if err != nil {
		return err
	}
	db, err := database.New(dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	// Queries never publish, so no change feed is attached.
	result, err := query(ctx, locations.NewService(db, nil))
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), result)
}

func (f *queryFlags) databaseConfig() (*config.DatabaseConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	dbCfg := cfg.Database
	if f.dbPath != "" {
		dbCfg.Path = f.dbPath
	}
	return &dbCfg, nil
}

func printResult(w io.Writer, result any) error {
	if outputJSON {
		return writeJSON(w, result)
	}
	switch rows := result.(type) {
	case []models.Location:
		for i, l := range rows {
			fmt.Fprintf(w, "%d. %s [%s] (%.6f, %.6f) %s\n", i+1, l.Name, l.Category, l.Latitude, l.Longitude, l.ID)
		}
		fmt.Fprintf(w, "%d locations\n", len(rows))
	case []models.TrendingLocation:
		for i, l := range rows {
			fmt.Fprintf(w, "%d. %s [%s] activity=%d likes=%d\n", i+1, l.Name, l.Category, l.ActivityCount, l.LikeCount)
		}
		fmt.Fprintf(w, "%d locations\n", len(rows))
	case []models.DistrictCluster:
		for _, d := range rows {
			fmt.Fprintf(w, "%-24s %6d  (%.4f, %.4f)\n", d.District, d.Count, d.Latitude, d.Longitude)
		}
		fmt.Fprintf(w, "%d districts\n", len(rows))
	default:
		return writeJSON(w, result)
	}
	return nil
}
