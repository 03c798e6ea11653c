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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/kampai/internal/logging"
)

// ErrCorrupted is returned when an archive does not match its checksums.
var ErrCorrupted = errors.New("backup archive is corrupted")

// Verify checks the archive checksum and every file inside it.
func (m *Manager) Verify(id string) error {
	b, err := m.Get(id)
	if err != nil {
		return err
	}
	return m.extract(b, "")
}

// Restore imports backup id into a new database file at target. target must
// not exist; the live database is never modified.
func (m *Manager) Restore(ctx context.Context, id, target string) error {
	b, err := m.Get(id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(target); err == nil {
		return fmt.Errorf("restore target %s already exists", target)
	}

	tmp, err := os.MkdirTemp(m.cfg.Dir, ".restore-")
	if err != nil {
		return fmt.Errorf("failed to create restore directory: %w", err)
	}
	defer os.RemoveAll(tmp) //nolint:errcheck

	if err := m.extract(b, tmp); err != nil {
		return err
	}
	if err := rewriteLoadPaths(filepath.Join(tmp, "load.sql"), tmp); err != nil {
		return err
	}
	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create target directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", target)
	if err != nil {
		return fmt.Errorf("failed to open restore target: %w", err)
	}
	_, err = db.ExecContext(ctx, "IMPORT DATABASE "+quoteLiteral(tmp))
	closeErr := db.Close()
	if err != nil {
		os.Remove(target) //nolint:errcheck
		return fmt.Errorf("failed to import backup: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close restored database: %w", closeErr)
	}

	logging.Info().Str("backup_id", id).Str("target", target).Msg("Backup restored")
	return nil
}

// extract verifies b and, when dst is not empty, writes its files there.
//
//nolint:gosec // G304: archive path is inside the configured backup directory
func (m *Manager) extract(b *Backup, dst string) error {
	sum, err := checksumFile(m.path(b))
	if err != nil {
		return err
	}
	if sum != b.Checksum {
		return fmt.Errorf("%w: archive checksum %s, want %s", ErrCorrupted, sum, b.Checksum)
	}

	f, err := os.Open(m.path(b))
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	defer gz.Close()

	want := make(map[string]File, len(b.Files))
	for _, file := range b.Files {
		want[file.Name] = file
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		if hdr.Name == metadataEntry {
			continue
		}
		expected, ok := want[hdr.Name]
		if !ok || filepath.Base(hdr.Name) != hdr.Name {
			return fmt.Errorf("%w: unexpected entry %q", ErrCorrupted, hdr.Name)
		}
		delete(want, hdr.Name)
		if err := copyEntry(tr, expected, dst); err != nil {
			return err
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for name := range want {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return fmt.Errorf("%w: missing entries %v", ErrCorrupted, missing)
	}
	return nil
}

//nolint:gosec // G304/G110: name is a verified base name, size is checksummed
func copyEntry(r io.Reader, expected File, dst string) error {
	w := io.Discard
	if dst != "" {
		out, err := os.OpenFile(filepath.Join(dst, expected.Name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", expected.Name, err)
		}
		defer out.Close()
		w = out
	}
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(w, h), r); err != nil {
		return fmt.Errorf("failed to extract %s: %w", expected.Name, err)
	}
	if sum := hex.EncodeToString(h.Sum(nil)); sum != expected.Checksum {
		return fmt.Errorf("%w: %s checksum %s, want %s", ErrCorrupted, expected.Name, sum, expected.Checksum)
	}
	return nil
}

var loadPathPattern = regexp.MustCompile(`'([^']*[/\\])?([^/\\']+\.(?:csv|parquet))'`)

// rewriteLoadPaths points the COPY statements of load.sql at dir. The export
// records the directory it was written to, which no longer exists.
func rewriteLoadPaths(loadSQL, dir string) error {
	data, err := os.ReadFile(loadSQL) //nolint:gosec // G304: inside the restore directory
	if err != nil {
		return fmt.Errorf("failed to read load.sql: %w", err)
	}
	prefix := strings.ReplaceAll(filepath.ToSlash(dir), "'", "''") + "/"
	out := loadPathPattern.ReplaceAllString(string(data), "'"+strings.ReplaceAll(prefix, "$", "$$")+"$2'")
	if err := os.WriteFile(loadSQL, []byte(out), 0o640); err != nil {
		return fmt.Errorf("failed to write load.sql: %w", err)
	}
	return nil
}
