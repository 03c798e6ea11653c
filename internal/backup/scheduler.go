// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package backup

import (
	"context"
	"time"

	"github.com/tomtom215/kampai/internal/logging"
)

// Serve takes a scheduled backup every Config.Interval and prunes after each
// one. It implements suture.Service; with no interval it just waits for ctx.
func (m *Manager) Serve(ctx context.Context) error {
	if m.cfg.Interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.runScheduled(ctx)
		}
	}
}

func (m *Manager) String() string { return "backup-scheduler" }

func (m *Manager) runScheduled(ctx context.Context) {
	if _, err := m.Create(ctx, TriggerScheduled, "Scheduled backup"); err != nil {
		logging.Error().Err(err).Msg("Scheduled backup failed")
		return
	}
	if _, err := m.Prune(); err != nil {
		logging.Error().Err(err).Msg("Backup retention failed")
	}
}
