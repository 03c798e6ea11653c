// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Map.MaxZoom != 20 {
		t.Errorf("Map.MaxZoom = %d, want 20", cfg.Map.MaxZoom)
	}
	if cfg.Community.KampaiCooldown != 15*time.Second {
		t.Errorf("Community.KampaiCooldown = %v, want 15s", cfg.Community.KampaiCooldown)
	}
	if cfg.Weather.TTL != 10*time.Minute {
		t.Errorf("Weather.TTL = %v, want 10m", cfg.Weather.TTL)
	}
	if cfg.Assistant.Model != "gpt-4-turbo-preview" || cfg.Assistant.MaxTokens != 500 {
		t.Errorf("Assistant = %+v", cfg.Assistant)
	}
	if cfg.Geocode.MaxEntries != 100 {
		t.Errorf("Geocode.MaxEntries = %d, want 100", cfg.Geocode.MaxEntries)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DUCKDB_PATH", ":memory:")
	t.Setenv("ADMIN_EMAILS", "a@example.com, b@example.com")
	t.Setenv("KAMPAI_COOLDOWN", "30s")
	t.Setenv("REALTIME_BACKEND", "nats")
	t.Setenv("NATS_EMBEDDED", "true")
	t.Setenv("SOME_UNRELATED_VAR", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Path != ":memory:" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if len(cfg.Security.AdminEmails) != 2 || cfg.Security.AdminEmails[1] != "b@example.com" {
		t.Errorf("Security.AdminEmails = %v", cfg.Security.AdminEmails)
	}
	if cfg.Community.KampaiCooldown != 30*time.Second {
		t.Errorf("Community.KampaiCooldown = %v, want 30s", cfg.Community.KampaiCooldown)
	}
	if !cfg.Realtime.EmbeddedServer || cfg.Realtime.Backend != "nats" {
		t.Errorf("Realtime = %+v", cfg.Realtime)
	}
}

func TestLoadFromFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 7000
map:
  width: 800
  height: 600
storage:
  backend: s3
  region: us-east-1
  endpoint: http://localhost:9000
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("env should override file: Port = %d", cfg.Server.Port)
	}
	if cfg.Map.Width != 800 || cfg.Map.Height != 600 {
		t.Errorf("Map = %dx%d, want 800x600", cfg.Map.Width, cfg.Map.Height)
	}
	if cfg.Storage.Backend != "s3" || cfg.Storage.Endpoint != "http://localhost:9000" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Map.FetchDelay != 500*time.Millisecond {
		t.Errorf("unset file keys should keep defaults, FetchDelay = %v", cfg.Map.FetchDelay)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"bad environment", func(c *Config) { c.Server.Environment = "staging" }, "ENVIRONMENT"},
		{"no database path", func(c *Config) { c.Database.Path = "" }, "DUCKDB_PATH"},
		{"short secret", func(c *Config) { c.Security.JWTSecret = "short" }, "JWT_SECRET"},
		{"production without secret", func(c *Config) { c.Server.Environment = "production" }, "JWT_SECRET"},
		{"production wildcard cors", func(c *Config) {
			c.Server.Environment = "production"
			c.Security.JWTSecret = strings.Repeat("x", 32)
		}, "CORS_ORIGINS"},
		{"refresh shorter than access", func(c *Config) { c.Security.RefreshTTL = time.Minute }, "REFRESH_TOKEN_TTL"},
		{"bcrypt cost", func(c *Config) { c.Security.BcryptCost = 2 }, "BCRYPT_COST"},
		{"max zoom", func(c *Config) { c.Map.MaxZoom = 30 }, "MAP_MAX_ZOOM"},
		{"storage backend", func(c *Config) { c.Storage.Backend = "gcs" }, "STORAGE_BACKEND"},
		{"half s3 credentials", func(c *Config) {
			c.Storage.Backend = "s3"
			c.Storage.AccessKeyID = "AKIA"
		}, "S3_SECRET_ACCESS_KEY"},
		{"nats url", func(c *Config) {
			c.Realtime.Backend = "nats"
			c.Realtime.NATSURL = "http://nats"
		}, "NATS_URL"},
		{"poll interval", func(c *Config) { c.Community.KampaiPollInterval = 0 }, "KAMPAI_POLL_INTERVAL"},
		{"audit level", func(c *Config) { c.Audit.Level = "verbose" }, "AUDIT_LEVEL"},
		{"audit retention", func(c *Config) { c.Audit.RetentionDays = 0 }, "AUDIT_RETENTION_DAYS"},
		{"backup dir", func(c *Config) {
			c.Backup.Enabled = true
			c.Backup.Dir = ""
		}, "BACKUP_DIR"},
		{"backup counts", func(c *Config) {
			c.Backup.Enabled = true
			c.Backup.MinCount = 40
		}, "BACKUP_MIN_COUNT"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %s", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"DUCKDB_PATH":         "database.path",
		"GOOGLE_MAPS_API_KEY": "geocode.api_key",
		"openai_api_key":      "assistant.api_key",
		"PATH":                "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
