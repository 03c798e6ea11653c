// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/kampai/config.yaml",
	"/etc/kampai/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			PublicURL:       "http://localhost:8080",
			Environment:     "development",
		},
		Database: DatabaseConfig{
			Path:                   "/data/kampai.duckdb",
			MaxMemory:              "1GB",
			Threads:                0, // 0 = runtime.NumCPU()
			PreserveInsertionOrder: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			AccessTTL:        time.Hour,
			RefreshTTL:       30 * 24 * time.Hour,
			BcryptCost:       12,
			AdminEmails:      []string{},
			SessionStorePath: "/data/sessions",
			RateLimitReqs:    120,
			RateLimitWindow:  time.Minute,
			CORSOrigins:      []string{"*"},
		},
		Map: MapConfig{
			Width:         1024,
			Height:        768,
			FetchDelay:    500 * time.Millisecond,
			FetchTimeout:  10 * time.Second,
			DistrictDelay: 500 * time.Millisecond,
			GridSize:      60,
			MaxZoom:       20,
		},
		Geocode: GeocodeConfig{
			Language:   "ja",
			Timeout:    10 * time.Second,
			CachePath:  "/data/geocode",
			MaxEntries: 100,
			MaxAge:     7 * 24 * time.Hour,
		},
		Weather: WeatherConfig{
			TTL:     10 * time.Minute,
			Timeout: 10 * time.Second,
		},
		Assistant: AssistantConfig{
			Model:       "gpt-4-turbo-preview",
			Temperature: 0.9,
			MaxTokens:   500,
			Timeout:     60 * time.Second,
		},
		Storage: StorageConfig{
			Backend: "memory",
			Region:  "ap-northeast-1",
		},
		Realtime: RealtimeConfig{
			Backend:       "memory",
			NATSURL:       "nats://127.0.0.1:4222",
			EmbeddedHost:  "127.0.0.1",
			EmbeddedPort:  4222,
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Community: CommunityConfig{
			KampaiCooldown:     15 * time.Second,
			KampaiLifetime:     time.Hour,
			KampaiPollInterval: 5 * time.Second,
			WSMessageRate:      20,
			WSMessageBurst:     40,
		},
		Audit: AuditConfig{
			Enabled:       true,
			Level:         "info",
			RetentionDays: 90,
			BufferSize:    1000,
		},
		Backup: BackupConfig{
			Dir:              "/data/backups",
			Interval:         24 * time.Hour,
			MinCount:         3,
			MaxCount:         30,
			MaxAgeDays:       30,
			KeepDailyForDays: 7,
		},
		Detection: DetectionConfig{
			Enabled:       true,
			MaxSpeedKmH:   900,
			MinDistanceKm: 100,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.admin_emails",
	"security.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
// YAML lists are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"public_url":       "server.public_url",
	"environment":      "server.environment",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"jwt_secret":          "security.jwt_secret",
	"access_token_ttl":    "security.access_ttl",
	"refresh_token_ttl":   "security.refresh_ttl",
	"bcrypt_cost":         "security.bcrypt_cost",
	"admin_emails":        "security.admin_emails",
	"session_store_path":  "security.session_store_path",
	"casbin_policy_path":  "security.casbin_policy_path",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	"map_width":          "map.width",
	"map_height":         "map.height",
	"map_fetch_delay":    "map.fetch_delay",
	"map_fetch_timeout":  "map.fetch_timeout",
	"map_district_delay": "map.district_delay",
	"map_grid_size":      "map.grid_size",
	"map_max_zoom":       "map.max_zoom",

	"google_maps_api_key":  "geocode.api_key",
	"geocode_base_url":     "geocode.base_url",
	"geocode_language":     "geocode.language",
	"geocode_timeout":      "geocode.timeout",
	"geocode_cache_path":   "geocode.cache_path",
	"geocode_cache_size":   "geocode.max_entries",
	"geocode_cache_maxage": "geocode.max_age",

	"openweather_api_key": "weather.api_key",
	"weather_base_url":    "weather.base_url",
	"weather_ttl":         "weather.ttl",
	"weather_timeout":     "weather.timeout",

	"openai_api_key":        "assistant.api_key",
	"assistant_base_url":    "assistant.base_url",
	"assistant_model":       "assistant.model",
	"assistant_temperature": "assistant.temperature",
	"assistant_max_tokens":  "assistant.max_tokens",
	"assistant_timeout":     "assistant.timeout",

	"storage_backend":      "storage.backend",
	"s3_region":            "storage.region",
	"s3_endpoint":          "storage.endpoint",
	"s3_access_key_id":     "storage.access_key_id",
	"s3_secret_access_key": "storage.secret_access_key",
	"s3_public_base_url":   "storage.public_base_url",
	"s3_bucket_prefix":     "storage.bucket_prefix",

	"realtime_backend":    "realtime.backend",
	"nats_url":            "realtime.nats_url",
	"nats_embedded":       "realtime.embedded_server",
	"nats_embedded_host":  "realtime.embedded_host",
	"nats_embedded_port":  "realtime.embedded_port",
	"nats_max_reconnects": "realtime.max_reconnects",
	"nats_reconnect_wait": "realtime.reconnect_wait",

	"kampai_cooldown":      "community.kampai_cooldown",
	"kampai_lifetime":      "community.kampai_lifetime",
	"kampai_poll_interval": "community.kampai_poll_interval",
	"ws_message_rate":      "community.ws_message_rate",
	"ws_message_burst":     "community.ws_message_burst",

	"audit_enabled":        "audit.enabled",
	"audit_level":          "audit.level",
	"audit_retention_days": "audit.retention_days",
	"audit_buffer_size":    "audit.buffer_size",
	"audit_log_to_stdout":  "audit.log_to_stdout",

	"backup_enabled":         "backup.enabled",
	"backup_dir":             "backup.dir",
	"backup_interval":        "backup.interval",
	"backup_min_count":       "backup.min_count",
	"backup_max_count":       "backup.max_count",
	"backup_max_age_days":    "backup.max_age_days",
	"backup_keep_daily_days": "backup.keep_daily_for_days",

	"detection_enabled":         "detection.enabled",
	"detection_max_speed_kmh":   "detection.max_speed_kmh",
	"detection_min_distance_km": "detection.min_distance_km",
}

// envTransformFunc maps an environment variable to its koanf path, for
// example DUCKDB_PATH to database.path. Unmapped variables are dropped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile calls callback whenever the file at path changes. The
// caller handles locking around the reload.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
