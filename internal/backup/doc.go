// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package backup snapshots the DuckDB database into compressed archives and
// restores them.
//
// A snapshot is taken with EXPORT DATABASE, which writes the schema and one
// CSV file per table from a consistent read, so the server keeps serving
// while it runs. The export directory is packed into a tar.gz archive:
//
//	kampai-{timestamp}-{id}.tar.gz
//	├── schema.sql
//	├── load.sql
//	├── locations.csv
//	├── ...
//	└── backup-metadata.json (file list with SHA-256 checksums)
//
// The manager keeps an index of archives in metadata.json inside the backup
// directory. Restore never touches the live database: it imports an archive
// into a new database file, which an operator then swaps in while the server
// is stopped.
//
// Usage:
//
//	manager, err := backup.NewManager(cfg, db.Conn())
//	b, err := manager.Create(ctx, backup.TriggerManual, "before upgrade")
//	err = manager.Restore(ctx, b.ID, "/data/restored.duckdb")
//
// Manager.Serve takes a backup every Config.Interval and applies the
// retention policy, and runs under the supervisor tree.
package backup
