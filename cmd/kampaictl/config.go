// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tomtom215/kampai/internal/config"
)

const masked = "********"

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Validate and print the effective configuration",
		Long: `Load configuration the way the server does (defaults, CONFIG_PATH or
config.yaml, then environment variables), validate it and print the result
with secrets masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), redact(*cfg))
		},
	}
}

// redact blanks every credential in cfg.
func redact(cfg config.Config) config.Config {
	mask := func(s *string) {
		if *s != "" {
			*s = masked
		}
	}
	mask(&cfg.Security.JWTSecret)
	mask(&cfg.Geocode.APIKey)
	mask(&cfg.Weather.APIKey)
	mask(&cfg.Assistant.APIKey)
	mask(&cfg.Storage.AccessKeyID)
	mask(&cfg.Storage.SecretAccessKey)
	return cfg
}

func printConfig(w io.Writer, cfg config.Config) error {
	if outputJSON {
		return writeJSON(w, cfg)
	}
	enabled := func(b bool) string {
		if b {
			return "enabled"
		}
		return "disabled"
	}
	_, err := fmt.Fprintf(w, `Configuration OK

Server:     %s:%d (%s)
Database:   %s
Sessions:   %s
Realtime:   %s
Storage:    %s
CORS:       %v
Weather:    %s
Geocoding:  %s
Assistant:  %s
`,
		cfg.Server.Host, cfg.Server.Port, cfg.Server.Environment,
		cfg.Database.Path,
		orMemory(cfg.Security.SessionStorePath),
		cfg.Realtime.Backend,
		cfg.Storage.Backend,
		cfg.Security.CORSOrigins,
		enabled(cfg.Weather.Enabled()),
		enabled(cfg.Geocode.Enabled()),
		enabled(cfg.Assistant.Enabled()),
	)
	return err
}

func orMemory(path string) string {
	if path == "" {
		return "in-memory"
	}
	return path
}
