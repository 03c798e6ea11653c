// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Command kampaictl is the operator CLI. It checks configuration, runs map
// queries against a database file, manages backups and benchmarks the
// in-memory spatial index.
package main

import (
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/kampai/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	verbose    bool
	outputJSON bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "kampaictl",
		Short:         "Operate a Kampai server",
		Long:          `Inspect configuration, query the location database, manage backups and benchmark the spatial index.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := "warn"
			if verbose {
				level = "debug"
			}
			logging.Init(logging.Config{Level: level, Format: "console", Output: cmd.ErrOrStderr()})
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	root.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output results as JSON")

	root.AddCommand(newConfigCmd(), newQueryCmd(), newBackupCmd(), newBenchCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
