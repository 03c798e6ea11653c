// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package backup

import (
	"time"

	"github.com/tomtom215/kampai/internal/logging"
)

// Prune deletes the archives the retention policy no longer keeps and
// returns them.
func (m *Manager) Prune() ([]*Backup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	backups := make([]*Backup, len(m.backups))
	copy(backups, m.backups)
	sortNewestFirst(backups)

	toDelete := selectForDeletion(backups, m.cfg.Retention, m.now())
	for _, b := range toDelete {
		if err := m.deleteLocked(b.ID); err != nil {
			return nil, err
		}
		logging.Info().Str("backup_id", b.ID).Time("created_at", b.CreatedAt).Msg("Pruned backup")
	}
	return toDelete, nil
}

// selectForDeletion applies policy to backups sorted newest first.
//
// MinCount and the daily rule mark archives as kept. Everything else goes
// once it is older than MaxAgeDays or once MaxCount archives are kept.
func selectForDeletion(backups []*Backup, policy RetentionPolicy, now time.Time) []*Backup {
	keep := make(map[string]bool)
	for i := 0; i < policy.MinCount && i < len(backups); i++ {
		keep[backups[i].ID] = true
	}
	if policy.KeepDailyForDays > 0 {
		cutoff := now.AddDate(0, 0, -policy.KeepDailyForDays)
		seen := make(map[string]bool)
		for _, b := range backups {
			day := b.CreatedAt.UTC().Format(time.DateOnly)
			if b.CreatedAt.After(cutoff) && !seen[day] {
				seen[day] = true
				keep[b.ID] = true
			}
		}
	}

	kept := len(keep)
	var toDelete []*Backup
	for _, b := range backups {
		if keep[b.ID] {
			continue
		}
		tooOld := policy.MaxAgeDays > 0 && b.CreatedAt.Before(now.AddDate(0, 0, -policy.MaxAgeDays))
		tooMany := policy.MaxCount > 0 && kept >= policy.MaxCount
		if tooOld || tooMany {
			toDelete = append(toDelete, b)
			continue
		}
		kept++
	}
	return toDelete
}
