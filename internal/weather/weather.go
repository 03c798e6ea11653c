// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package weather looks up current conditions at a location from
// OpenWeather.
package weather

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/kampai/internal/breaker"
	"github.com/tomtom215/kampai/internal/cache"
	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org"
	DefaultTTL     = 10 * time.Minute
)

// Report is the current weather shown on a location card.
type Report struct {
	TemperatureC int    `json:"temperature"`
	Condition    string `json:"condition"`
	Icon         string `json:"icon"`
}

// IconFor maps an OpenWeather main condition to an icon name.
func IconFor(condition string) string {
	switch condition {
	case "Clear":
		return "sun"
	case "Clouds":
		return "cloud"
	case "Rain":
		return "cloud-rain"
	case "Snow":
		return "cloud-snow"
	case "Thunderstorm":
		return "cloud-lightning"
	default:
		return "cloud"
	}
}

// Config configures Service.
type Config struct {
	APIKey  string
	BaseURL string
	TTL     time.Duration
	Timeout time.Duration
}

// Service fetches and caches reports per rounded coordinate.
type Service struct {
	cfg   Config
	http  *http.Client
	cb    *gobreaker.CircuitBreaker[Report]
	cache *cache.Cache[Report]
}

// NewService builds a Service. Call Close to stop the cache sweep.
func NewService(cfg Config) *Service {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Service{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		cb:    breaker.New[Report]("openweather", breaker.Settings{}),
		cache: cache.New[Report]("weather", cfg.TTL, cfg.TTL),
	}
}

// Close releases the cache.
func (s *Service) Close() {
	s.cache.Close()
}

// cacheKey rounds to two decimals, about 1km.
func cacheKey(c geo.Coordinate) string {
	return strconv.FormatFloat(c.Lat, 'f', 2, 64) + "," + strconv.FormatFloat(c.Lon, 'f', 2, 64)
}

// Current returns the weather at c.
func (s *Service) Current(ctx context.Context, c geo.Coordinate) (Report, error) {
	if err := c.Validate(); err != nil {
		return Report{}, err
	}
	key := cacheKey(c)
	if r, ok := s.cache.Get(key); ok {
		return r, nil
	}

	start := time.Now()
	r, err := s.cb.Execute(func() (Report, error) {
		return s.fetch(ctx, c)
	})
	metrics.RecordExternalCall("weather", time.Since(start), err)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Weather lookup failed")
		return Report{}, fmt.Errorf("weather at %s: %w", key, err)
	}
	s.cache.Set(key, r)
	return r, nil
}

type currentResponse struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Main string `json:"main"`
	} `json:"weather"`
}

func (s *Service) fetch(ctx context.Context, c geo.Coordinate) (Report, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.Lon, 'f', -1, 64))
	q.Set("units", "metric")
	q.Set("appid", s.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"/data/2.5/weather?"+q.Encode(), nil)
	if err != nil {
		return Report{}, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return Report{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Report{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Report{}, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Weather) == 0 {
		return Report{}, fmt.Errorf("response has no weather entry")
	}
	cond := out.Weather[0].Main
	return Report{
		TemperatureC: int(math.Round(out.Main.Temp)),
		Condition:    cond,
		Icon:         IconFor(cond),
	}, nil
}
