// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package config

import (
	"time"
)

// Config holds all application configuration.
//
// Loading order (koanf v2):
//  1. Defaults built into defaultConfig
//  2. Optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment variables, through the explicit envMappings table
//
// Config is immutable after Load and safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Logging   LoggingConfig   `koanf:"logging"`
	Security  SecurityConfig  `koanf:"security"`
	Map       MapConfig       `koanf:"map"`
	Geocode   GeocodeConfig   `koanf:"geocode"`
	Weather   WeatherConfig   `koanf:"weather"`
	Assistant AssistantConfig `koanf:"assistant"`
	Storage   StorageConfig   `koanf:"storage"`
	Realtime  RealtimeConfig  `koanf:"realtime"`
	Community CommunityConfig `koanf:"community"`
	Audit     AuditConfig     `koanf:"audit"`
	Backup    BackupConfig    `koanf:"backup"`
	Detection DetectionConfig `koanf:"detection"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// PublicURL is the externally reachable base URL, used for links to
	// locally stored uploads.
	PublicURL   string `koanf:"public_url"`
	Environment string `koanf:"environment"`
}

// IsProduction reports whether the server runs with production checks.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// DatabaseConfig holds DuckDB settings. Path ":memory:" keeps everything in
// memory.
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SecurityConfig holds authentication, authorization and rate limits.
type SecurityConfig struct {
	JWTSecret  string        `koanf:"jwt_secret"`
	AccessTTL  time.Duration `koanf:"access_ttl"`
	RefreshTTL time.Duration `koanf:"refresh_ttl"`
	BcryptCost int           `koanf:"bcrypt_cost"`
	// AdminEmails sign up with the admin role.
	AdminEmails []string `koanf:"admin_emails"`
	// SessionStorePath is the Badger directory for refresh sessions; empty
	// keeps them in memory.
	SessionStorePath  string        `koanf:"session_store_path"`
	CasbinPolicyPath  string        `koanf:"casbin_policy_path"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// MapConfig tunes map sessions.
type MapConfig struct {
	Width         int           `koanf:"width"`
	Height        int           `koanf:"height"`
	FetchDelay    time.Duration `koanf:"fetch_delay"`
	FetchTimeout  time.Duration `koanf:"fetch_timeout"`
	DistrictDelay time.Duration `koanf:"district_delay"`
	GridSize      float64       `koanf:"grid_size"`
	MaxZoom       int           `koanf:"max_zoom"`
}

// GeocodeConfig configures reverse geocoding and its Badger cache.
type GeocodeConfig struct {
	APIKey     string        `koanf:"api_key"`
	BaseURL    string        `koanf:"base_url"`
	Language   string        `koanf:"language"`
	Timeout    time.Duration `koanf:"timeout"`
	CachePath  string        `koanf:"cache_path"`
	MaxEntries int           `koanf:"max_entries"`
	MaxAge     time.Duration `koanf:"max_age"`
}

// Enabled reports whether an API key is configured.
func (g GeocodeConfig) Enabled() bool { return g.APIKey != "" }

// WeatherConfig configures the weather lookup.
type WeatherConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	TTL     time.Duration `koanf:"ttl"`
	Timeout time.Duration `koanf:"timeout"`
}

// Enabled reports whether an API key is configured.
func (w WeatherConfig) Enabled() bool { return w.APIKey != "" }

// AssistantConfig configures the chat-completion client.
type AssistantConfig struct {
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	Model       string        `koanf:"model"`
	Temperature float64       `koanf:"temperature"`
	MaxTokens   int           `koanf:"max_tokens"`
	Timeout     time.Duration `koanf:"timeout"`
}

// Enabled reports whether an API key is configured.
func (a AssistantConfig) Enabled() bool { return a.APIKey != "" }

// StorageConfig selects where uploaded images go.
type StorageConfig struct {
	// Backend is "memory" or "s3".
	Backend         string `koanf:"backend"`
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	PublicBaseURL   string `koanf:"public_base_url"`
	BucketPrefix    string `koanf:"bucket_prefix"`
}

// RealtimeConfig selects the change feed transport.
type RealtimeConfig struct {
	// Backend is "memory" or "nats".
	Backend        string        `koanf:"backend"`
	NATSURL        string        `koanf:"nats_url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	EmbeddedHost   string        `koanf:"embedded_host"`
	EmbeddedPort   int           `koanf:"embedded_port"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
}

// CommunityConfig tunes the social features.
type CommunityConfig struct {
	KampaiCooldown     time.Duration `koanf:"kampai_cooldown"`
	KampaiLifetime     time.Duration `koanf:"kampai_lifetime"`
	KampaiPollInterval time.Duration `koanf:"kampai_poll_interval"`
	// WSMessageRate limits inbound websocket frames per second per client.
	WSMessageRate  float64 `koanf:"ws_message_rate"`
	WSMessageBurst int     `koanf:"ws_message_burst"`
}

// AuditConfig controls the security audit trail.
type AuditConfig struct {
	Enabled       bool   `koanf:"enabled"`
	Level         string `koanf:"level"`
	RetentionDays int    `koanf:"retention_days"`
	BufferSize    int    `koanf:"buffer_size"`
	LogToStdout   bool   `koanf:"log_to_stdout"`
}

// BackupConfig schedules database snapshots. Retention fields of zero
// disable that rule.
type BackupConfig struct {
	Enabled          bool          `koanf:"enabled"`
	Dir              string        `koanf:"dir"`
	Interval         time.Duration `koanf:"interval"`
	MinCount         int           `koanf:"min_count"`
	MaxCount         int           `koanf:"max_count"`
	MaxAgeDays       int           `koanf:"max_age_days"`
	KeepDailyForDays int           `koanf:"keep_daily_for_days"`
}

// DetectionConfig tunes check-in anomaly detection.
type DetectionConfig struct {
	Enabled       bool    `koanf:"enabled"`
	MaxSpeedKmH   float64 `koanf:"max_speed_kmh"`
	MinDistanceKm float64 `koanf:"min_distance_km"`
}
