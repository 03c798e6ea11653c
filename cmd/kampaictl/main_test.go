// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package main

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/kampai/internal/config"
	"github.com/tomtom215/kampai/internal/database"
	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/locations"
	"github.com/tomtom215/kampai/internal/models"
)

func smallBench() benchOptions {
	return benchOptions{
		Points:  500,
		Queries: 50,
		Workers: 4,
		BoxSize: 1,
		Seed:    42,
		MinLat:  30,
		MaxLat:  45,
		MinLon:  129,
		MaxLon:  146,
	}
}

func TestRunBench(t *testing.T) {
	res, err := runBench(context.Background(), smallBench())
	if err != nil {
		t.Fatalf("runBench() error = %v", err)
	}
	if res.Points != 500 {
		t.Errorf("Points = %d, want 500", res.Points)
	}
	if res.Failed != 0 {
		t.Errorf("Failed = %d, want 0", res.Failed)
	}
	if res.MinQuery > res.MaxQuery {
		t.Errorf("MinQuery %v > MaxQuery %v", res.MinQuery, res.MaxQuery)
	}
}

func TestRunBenchRejectsBadOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*benchOptions)
	}{
		{"no points", func(o *benchOptions) { o.Points = 0 }},
		{"no queries", func(o *benchOptions) { o.Queries = 0 }},
		{"box too large", func(o *benchOptions) { o.BoxSize = 20 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			o := smallBench()
			tt.modify(&o)
			if _, err := runBench(context.Background(), o); err == nil {
				t.Error("runBench() error = nil, want error")
			}
		})
	}
}

func TestRandomLocationsStayInArea(t *testing.T) {
	t.Parallel()

	o := smallBench()
	for _, l := range randomLocations(rand.New(rand.NewSource(1)), o) {
		if l.Latitude < o.MinLat || l.Latitude > o.MaxLat || l.Longitude < o.MinLon || l.Longitude > o.MaxLon {
			t.Fatalf("location %s at (%v, %v) outside area", l.ID, l.Latitude, l.Longitude)
		}
		if !l.Category.Valid() {
			t.Fatalf("location %s has category %q", l.ID, l.Category)
		}
	}
}

func TestRedactMasksSecrets(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Security.JWTSecret = "super-secret"
	cfg.Weather.APIKey = "weather-key"
	cfg.Storage.SecretAccessKey = "aws-secret"

	got := redact(cfg)
	if got.Security.JWTSecret != masked {
		t.Errorf("JWTSecret = %q, want masked", got.Security.JWTSecret)
	}
	if got.Weather.APIKey != masked {
		t.Errorf("Weather.APIKey = %q, want masked", got.Weather.APIKey)
	}
	if got.Storage.SecretAccessKey != masked {
		t.Errorf("SecretAccessKey = %q, want masked", got.Storage.SecretAccessKey)
	}
	if got.Assistant.APIKey != "" {
		t.Errorf("Assistant.APIKey = %q, want empty", got.Assistant.APIKey)
	}
	if cfg.Security.JWTSecret != "super-secret" {
		t.Error("redact() modified its argument")
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	for _, name := range []string{"config", "query", "backup", "bench"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("Find(%q) = %v, %v", name, cmd, err)
		}
	}
	if cmd, _, err := root.Find([]string{"query", "districts"}); err != nil || cmd.Name() != "districts" {
		t.Errorf("Find(query districts) = %v, %v", cmd, err)
	}
	if cmd, _, err := root.Find([]string{"backup", "restore"}); err != nil || cmd.Name() != "restore" {
		t.Errorf("Find(backup restore) = %v, %v", cmd, err)
	}
}

func TestBenchCommandPrintsSummary(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"bench", "--points", "200", "--queries", "10", "--workers", "2", "--seed", "7"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "Benchmark Results") {
		t.Errorf("output = %q, want benchmark summary", out.String())
	}
}

func TestAllTrendingPagesThroughRanking(t *testing.T) {
	t.Parallel()

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	const total = 2*locations.TrendingPageSize + 5
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := range total {
		loc := models.Location{
			ID: fmt.Sprintf("l%02d", i), Name: fmt.Sprintf("Camp %d", i), Category: geo.CategoryCamp,
			Latitude: 35, Longitude: 139, CreatedBy: "u1", CreatedAt: created.Add(time.Duration(i) * time.Minute),
		}
		if err := db.CreateLocation(ctx, loc, nil); err != nil {
			t.Fatalf("CreateLocation() error = %v", err)
		}
	}

	got, err := allTrending(ctx, locations.NewService(db, nil), "")
	if err != nil {
		t.Fatalf("allTrending() error = %v", err)
	}
	if len(got) != total {
		t.Fatalf("allTrending() len = %d, want %d", len(got), total)
	}
	seen := make(map[string]bool, total)
	for _, l := range got {
		if seen[l.ID] {
			t.Errorf("location %s listed twice", l.ID)
		}
		seen[l.ID] = true
	}
}
