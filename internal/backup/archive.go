// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

const metadataEntry = "backup-metadata.json"

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// exportDatabase writes the schema and table data to dir.
func exportDatabase(ctx context.Context, db *sql.DB, dir string) error {
	if _, err := db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("failed to checkpoint database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "EXPORT DATABASE "+quoteLiteral(dir)); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// archiveWriters closes the file, gzip and tar layers in reverse order.
type archiveWriters struct {
	tw      *tar.Writer
	closers []io.Closer
}

func (aw *archiveWriters) Close() error {
	var firstErr error
	for i := len(aw.closers) - 1; i >= 0; i-- {
		if err := aw.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

//nolint:gosec // G304: path is inside the configured backup directory
func newArchiveWriters(path string) (*archiveWriters, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to create backup file: %w", err)
	}
	gz, err := gzip.NewWriterLevel(out, gzip.BestSpeed)
	if err != nil {
		out.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	tw := tar.NewWriter(gz)
	return &archiveWriters{tw: tw, closers: []io.Closer{out, gz, tw}}, nil
}

// writeArchive packs every file of srcDir, then the metadata entry, into a
// new archive at path.
func writeArchive(path, srcDir string, b *Backup) (files []File, err error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read export directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	aw, err := newArchiveWriters(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := aw.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("failed to finalize archive: %w", closeErr)
		}
	}()

	for _, name := range names {
		f, err := addFile(aw.tw, filepath.Join(srcDir, name), name)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}

	meta := *b
	meta.Files = files
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup metadata: %w", err)
	}
	hdr := &tar.Header{Name: metadataEntry, Mode: 0o640, Size: int64(len(data)), ModTime: b.CreatedAt}
	if err := aw.tw.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("failed to write metadata header: %w", err)
	}
	if _, err := aw.tw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	return files, nil
}

//nolint:gosec // G304: src is inside the export directory
func addFile(tw *tar.Writer, src, name string) (File, error) {
	in, err := os.Open(src)
	if err != nil {
		return File{}, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return File{}, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return File{}, fmt.Errorf("failed to build header for %s: %w", name, err)
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return File{}, fmt.Errorf("failed to write header for %s: %w", name, err)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tw, h), in)
	if err != nil {
		return File{}, fmt.Errorf("failed to archive %s: %w", name, err)
	}
	return File{Name: name, Size: n, Checksum: hex.EncodeToString(h.Sum(nil))}, nil
}

//nolint:gosec // G304: path is inside the configured backup directory
func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash backup file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
