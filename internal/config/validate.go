// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// minJWTSecretLength matches auth.MinSecretLength.
const minJWTSecretLength = 32

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateMap(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateRealtime(); err != nil {
		return err
	}
	if err := c.validateCommunity(); err != nil {
		return err
	}
	if err := c.validateAudit(); err != nil {
		return err
	}
	if err := c.validateBackup(); err != nil {
		return err
	}
	if c.Detection.Enabled && (c.Detection.MaxSpeedKmH <= 0 || c.Detection.MinDistanceKm < 0) {
		return fmt.Errorf("DETECTION_MAX_SPEED_KMH must be positive and DETECTION_MIN_DISTANCE_KM not negative")
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.Server.PublicURL != "" {
		if err := validateHTTPURL(c.Server.PublicURL); err != nil {
			return fmt.Errorf("PUBLIC_URL is invalid: %w", err)
		}
	}
	switch c.Server.Environment {
	case "development", "production", "test":
	default:
		return fmt.Errorf("ENVIRONMENT must be development, production or test, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required (use :memory: for an in-memory database)")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must not be negative")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	s := c.Security
	if s.JWTSecret == "" && c.Server.IsProduction() {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if s.JWTSecret != "" && len(s.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if s.AccessTTL <= 0 || s.RefreshTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if s.RefreshTTL < s.AccessTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL must not be shorter than ACCESS_TOKEN_TTL")
	}
	if s.BcryptCost < 4 || s.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", s.BcryptCost)
	}
	if !s.RateLimitDisabled && (s.RateLimitReqs <= 0 || s.RateLimitWindow <= 0) {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	if c.Server.IsProduction() {
		for _, o := range s.CORSOrigins {
			if o == "*" {
				return fmt.Errorf("CORS_ORIGINS must not contain * in production")
			}
		}
	}
	return nil
}

func (c *Config) validateMap() error {
	m := c.Map
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("map size must be positive, got %dx%d", m.Width, m.Height)
	}
	if m.MaxZoom < 1 || m.MaxZoom > 22 {
		return fmt.Errorf("MAP_MAX_ZOOM must be between 1 and 22, got %d", m.MaxZoom)
	}
	if m.GridSize <= 0 {
		return fmt.Errorf("MAP_GRID_SIZE must be positive")
	}
	if m.FetchDelay < 0 || m.DistrictDelay < 0 {
		return fmt.Errorf("map debounce delays must not be negative")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "memory":
		return nil
	case "s3":
		if c.Storage.Region == "" {
			return fmt.Errorf("S3_REGION is required when STORAGE_BACKEND=s3")
		}
		if (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == "") {
			return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
		}
		for name, v := range map[string]string{"S3_ENDPOINT": c.Storage.Endpoint, "S3_PUBLIC_BASE_URL": c.Storage.PublicBaseURL} {
			if v == "" {
				continue
			}
			if err := validateHTTPURL(v); err != nil {
				return fmt.Errorf("%s is invalid: %w", name, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("STORAGE_BACKEND must be memory or s3, got %q", c.Storage.Backend)
	}
}

func (c *Config) validateRealtime() error {
	switch c.Realtime.Backend {
	case "memory":
		return nil
	case "nats":
		if c.Realtime.EmbeddedServer {
			if c.Realtime.EmbeddedPort < 1 || c.Realtime.EmbeddedPort > 65535 {
				return fmt.Errorf("NATS_EMBEDDED_PORT must be between 1 and 65535")
			}
			return nil
		}
		if !strings.HasPrefix(c.Realtime.NATSURL, "nats://") && !strings.HasPrefix(c.Realtime.NATSURL, "tls://") {
			return fmt.Errorf("NATS_URL must start with nats:// or tls://, got %q", c.Realtime.NATSURL)
		}
		return nil
	default:
		return fmt.Errorf("REALTIME_BACKEND must be memory or nats, got %q", c.Realtime.Backend)
	}
}

func (c *Config) validateCommunity() error {
	cc := c.Community
	if cc.KampaiCooldown < 0 {
		return fmt.Errorf("KAMPAI_COOLDOWN must not be negative")
	}
	if cc.KampaiLifetime <= 0 || cc.KampaiPollInterval <= 0 {
		return fmt.Errorf("KAMPAI_LIFETIME and KAMPAI_POLL_INTERVAL must be positive")
	}
	if cc.WSMessageRate <= 0 || cc.WSMessageBurst <= 0 {
		return fmt.Errorf("WS_MESSAGE_RATE and WS_MESSAGE_BURST must be positive")
	}
	return nil
}

func (c *Config) validateAudit() error {
	if !c.Audit.Enabled {
		return nil
	}
	switch c.Audit.Level {
	case "debug", "info", "warning", "critical":
	default:
		return fmt.Errorf("AUDIT_LEVEL must be debug, info, warning or critical, got %q", c.Audit.Level)
	}
	if c.Audit.RetentionDays < 1 {
		return fmt.Errorf("AUDIT_RETENTION_DAYS must be at least 1")
	}
	return nil
}

func (c *Config) validateBackup() error {
	b := c.Backup
	if !b.Enabled {
		return nil
	}
	if b.Dir == "" {
		return fmt.Errorf("BACKUP_DIR is required when BACKUP_ENABLED=true")
	}
	if b.Interval < 0 {
		return fmt.Errorf("BACKUP_INTERVAL must not be negative")
	}
	if b.MinCount < 0 || b.MaxCount < 0 || b.MaxAgeDays < 0 || b.KeepDailyForDays < 0 {
		return fmt.Errorf("backup retention values must not be negative")
	}
	if b.MaxCount > 0 && b.MinCount > b.MaxCount {
		return fmt.Errorf("BACKUP_MIN_COUNT (%d) must not exceed BACKUP_MAX_COUNT (%d)", b.MinCount, b.MaxCount)
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
	"fatal": true, "panic": true, "disabled": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
