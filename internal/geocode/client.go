// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/kampai/internal/breaker"
	"github.com/tomtom215/kampai/internal/geo"
	"github.com/tomtom215/kampai/internal/metrics"
)

// DefaultBaseURL is the Google Maps web service host.
const DefaultBaseURL = "https://maps.googleapis.com"

// ErrNoResults is returned when the provider knows no address for a point.
var ErrNoResults = errors.New("no geocoding results")

// addressTypes are the component types joined into the short address,
// in the order the provider lists them.
var addressTypes = []string{"locality", "ward", "sublocality_level_1"}

// Resolver turns a coordinate into a short address.
type Resolver interface {
	ReverseGeocode(ctx context.Context, c geo.Coordinate) (string, error)
}

// GoogleConfig configures GoogleClient.
type GoogleConfig struct {
	APIKey   string
	BaseURL  string
	Language string
	Timeout  time.Duration
}

// GoogleClient calls the Geocoding API behind a circuit breaker.
type GoogleClient struct {
	cfg  GoogleConfig
	http *http.Client
	cb   *gobreaker.CircuitBreaker[string]
}

// NewGoogleClient builds a client. An empty BaseURL uses DefaultBaseURL.
func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Language == "" {
		cfg.Language = "ja"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &GoogleClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		cb:   breaker.New[string]("google-geocode", breaker.Settings{}),
	}
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
	} `json:"results"`
}

// ReverseGeocode implements Resolver.
func (g *GoogleClient) ReverseGeocode(ctx context.Context, c geo.Coordinate) (string, error) {
	start := time.Now()
	noResults := false
	addr, err := g.cb.Execute(func() (string, error) {
		a, err := g.reverse(ctx, c)
		// A point with no address is an answer, not a provider failure.
		if errors.Is(err, ErrNoResults) {
			noResults = true
			return "", nil
		}
		return a, err
	})
	metrics.RecordExternalCall("geocode", time.Since(start), err)
	if err == nil && noResults {
		return "", ErrNoResults
	}
	return addr, err
}

func (g *GoogleClient) reverse(ctx context.Context, c geo.Coordinate) (string, error) {
	q := url.Values{}
	q.Set("latlng", strconv.FormatFloat(c.Lat, 'f', -1, 64)+","+strconv.FormatFloat(c.Lon, 'f', -1, 64))
	q.Set("key", g.cfg.APIKey)
	q.Set("language", g.cfg.Language)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/maps/api/geocode/json?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build geocode request: %w", err)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("geocode: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode geocode response: %w", err)
	}
	switch out.Status {
	case "OK":
	case "ZERO_RESULTS":
		return "", ErrNoResults
	default:
		return "", fmt.Errorf("geocode: status %s: %s", out.Status, out.ErrorMessage)
	}
	if len(out.Results) == 0 {
		return "", ErrNoResults
	}

	var b strings.Builder
	for _, comp := range out.Results[0].AddressComponents {
		if hasAnyType(comp.Types) {
			b.WriteString(comp.LongName)
		}
	}
	return b.String(), nil
}

func hasAnyType(types []string) bool {
	for _, t := range types {
		for _, want := range addressTypes {
			if t == want {
				return true
			}
		}
	}
	return false
}
