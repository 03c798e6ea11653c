// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/kampai/internal/logging"
)

const indexFile = "metadata.json"

// Manager creates, lists, prunes and restores archives in one directory.
type Manager struct {
	cfg Config
	db  *sql.DB

	mu      sync.RWMutex
	backups []*Backup

	// create serializes snapshots; EXPORT DATABASE into the same
	// directory twice at once would interleave files.
	create sync.Mutex
	now    func() time.Time
}

// NewManager opens the backup directory, creating it if needed, and loads
// its index. db may be nil for a manager that only lists, prunes or
// restores.
func NewManager(cfg Config, db *sql.DB) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, errors.New("backup directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	if cfg.AppVersion == "" {
		cfg.AppVersion = "dev"
	}
	m := &Manager{cfg: cfg, db: db, now: time.Now}
	if err := m.loadIndex(); err != nil {
		return nil, err
	}
	return m, nil
}

// Create snapshots the database into a new archive.
func (m *Manager) Create(ctx context.Context, trigger Trigger, notes string) (*Backup, error) {
	if m.db == nil {
		return nil, errors.New("backup manager has no database connection")
	}
	m.create.Lock()
	defer m.create.Unlock()

	start := m.now()
	b := &Backup{
		ID:         uuid.NewString(),
		Trigger:    trigger,
		CreatedAt:  start.UTC(),
		AppVersion: m.cfg.AppVersion,
		Notes:      notes,
	}
	b.FileName = fmt.Sprintf("kampai-%s-%s.tar.gz", start.UTC().Format("20060102-150405"), b.ID[:8])

	exportDir, err := os.MkdirTemp(m.cfg.Dir, ".export-")
	if err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	defer os.RemoveAll(exportDir) //nolint:errcheck

	if err := exportDatabase(ctx, m.db, exportDir); err != nil {
		return nil, err
	}

	archivePath := m.path(b)
	files, err := writeArchive(archivePath, exportDir, b)
	if err != nil {
		os.Remove(archivePath) //nolint:errcheck
		return nil, err
	}
	b.Files = files

	if b.Checksum, err = checksumFile(archivePath); err != nil {
		os.Remove(archivePath) //nolint:errcheck
		return nil, err
	}
	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup file: %w", err)
	}
	b.FileSize = info.Size()
	b.Duration = m.now().Sub(start)

	m.mu.Lock()
	m.backups = append(m.backups, b)
	err = m.saveIndexLocked()
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	logging.Info().
		Str("backup_id", b.ID).
		Str("trigger", string(trigger)).
		Int64("size", b.FileSize).
		Dur("duration", b.Duration).
		Msg("Backup created")
	return b, nil
}

// List returns every backup, newest first.
func (m *Manager) List() []*Backup {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Backup, len(m.backups))
	copy(out, m.backups)
	sortNewestFirst(out)
	return out
}

// Get returns one backup by ID.
func (m *Manager) Get(id string) (*Backup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.backups {
		if b.ID == id {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Delete removes an archive and its index entry.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(id)
}

func (m *Manager) deleteLocked(id string) error {
	for i, b := range m.backups {
		if b.ID != id {
			continue
		}
		if err := os.Remove(m.path(b)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete backup file: %w", err)
		}
		m.backups = append(m.backups[:i], m.backups[i+1:]...)
		return m.saveIndexLocked()
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Stats summarizes the stored archives.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s Stats
	for _, b := range m.backups {
		s.Count++
		s.TotalSize += b.FileSize
		created := b.CreatedAt
		if s.Oldest == nil || created.Before(*s.Oldest) {
			s.Oldest = &created
		}
		if s.Newest == nil || created.After(*s.Newest) {
			s.Newest = &created
		}
	}
	return s
}

func (m *Manager) path(b *Backup) string {
	return filepath.Join(m.cfg.Dir, b.FileName)
}

func (m *Manager) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(m.cfg.Dir, indexFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read backup index: %w", err)
	}
	if err := json.Unmarshal(data, &m.backups); err != nil {
		return fmt.Errorf("failed to parse backup index: %w", err)
	}
	return nil
}

// saveIndexLocked replaces the index atomically.
func (m *Manager) saveIndexLocked() error {
	data, err := json.MarshalIndent(m.backups, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode backup index: %w", err)
	}
	tmp := filepath.Join(m.cfg.Dir, indexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("failed to write backup index: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(m.cfg.Dir, indexFile)); err != nil {
		return fmt.Errorf("failed to replace backup index: %w", err)
	}
	return nil
}

func sortNewestFirst(backups []*Backup) {
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
}
