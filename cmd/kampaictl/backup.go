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

	"github.com/tomtom215/kampai/internal/backup"
	"github.com/tomtom215/kampai/internal/config"
	"github.com/tomtom215/kampai/internal/database"
)

type backupFlags struct {
	dir     string
	dbPath  string
	notes   string
	target  string
	timeout time.Duration
}

func newBackupCmd() *cobra.Command {
	f := &backupFlags{}
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list, verify, prune and restore database backups",
		Long: `Manage DuckDB snapshots in the backup directory. Retention settings
come from the BACKUP_* configuration. Restore writes a new database file and
never touches the live one.`,
	}
	cmd.PersistentFlags().StringVar(&f.dir, "dir", "", "Backup directory (default: BACKUP_DIR from configuration)")
	cmd.PersistentFlags().DurationVar(&f.timeout, "timeout", 10*time.Minute, "Operation timeout")

	create := &cobra.Command{
		Use:   "create",
		Short: "Snapshot a database file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			dbCfg := cfg.Database
			if f.dbPath != "" {
				dbCfg.Path = f.dbPath
			}
			db, err := database.New(&dbCfg)
			if err != nil {
				return err
			}
			defer db.Close()

			m, err := backup.NewManager(f.managerConfig(cfg), db.Conn())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
			defer cancel()
			b, err := m.Create(ctx, backup.TriggerManual, f.notes)
			if err != nil {
				return err
			}
			return printBackups(cmd.OutOrStdout(), b)
		},
	}
	create.Flags().StringVar(&f.dbPath, "db", "", "Database path (default: DUCKDB_PATH from configuration)")
	create.Flags().StringVar(&f.notes, "notes", "", "Free-form note stored with the backup")

	list := &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := f.manager()
			if err != nil {
				return err
			}
			return printBackups(cmd.OutOrStdout(), m.List()...)
		},
	}

	verify := &cobra.Command{
		Use:   "verify <id>",
		Short: "Check an archive against its checksums",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := f.manager()
			if err != nil {
				return err
			}
			if err := m.Verify(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s OK\n", args[0])
			return nil
		},
	}

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete backups outside the retention policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := f.manager()
			if err != nil {
				return err
			}
			pruned, err := m.Prune()
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), pruned)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d backups\n", len(pruned))
			return nil
		},
	}

	restore := &cobra.Command{
		Use:   "restore <id>",
		Short: "Import a backup into a new database file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := f.manager()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
			defer cancel()
			if err := m.Restore(ctx, args[0], f.target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s to %s\nstop the server and point DUCKDB_PATH at it to switch over\n", args[0], f.target)
			return nil
		},
	}
	restore.Flags().StringVar(&f.target, "target", "", "Path of the new database file")
	_ = restore.MarkFlagRequired("target")

	cmd.AddCommand(create, list, verify, prune, restore)
	return cmd
}

func (f *backupFlags) managerConfig(cfg *config.Config) backup.Config {
	dir := cfg.Backup.Dir
	if f.dir != "" {
		dir = f.dir
	}
	return backup.Config{
		Dir:        dir,
		AppVersion: version,
		Retention: backup.RetentionPolicy{
			MinCount:         cfg.Backup.MinCount,
			MaxCount:         cfg.Backup.MaxCount,
			MaxAgeDays:       cfg.Backup.MaxAgeDays,
			KeepDailyForDays: cfg.Backup.KeepDailyForDays,
		},
	}
}

// manager opens the backup directory without a database connection.
func (f *backupFlags) manager() (*backup.Manager, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return backup.NewManager(f.managerConfig(cfg), nil)
}

func printBackups(w io.Writer, backups ...*backup.Backup) error {
	if outputJSON {
		return writeJSON(w, backups)
	}
	for _, b := range backups {
		fmt.Fprintf(w, "%s  %s  %-9s %8d bytes  %s\n",
			b.ID, b.CreatedAt.Format(time.RFC3339), b.Trigger, b.FileSize, b.Notes)
	}
	fmt.Fprintf(w, "%d backups\n", len(backups))
	return nil
}
