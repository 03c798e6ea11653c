// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package kampai

import (
	"context"
	"slices"
	"time"

	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/models"
)

// Poller refreshes the active list on an interval and hands it to Broadcast
// whenever its membership changes. It implements suture.Service.
type Poller struct {
	svc       *Service
	interval  time.Duration
	broadcast func([]models.KampaiNow)

	last []string
}

// NewPoller polls svc every interval (DefaultPollInterval when zero).
func NewPoller(svc *Service, interval time.Duration, broadcast func([]models.KampaiNow)) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{svc: svc, interval: interval, broadcast: broadcast}
}

// Serve runs until ctx is cancelled.
func (p *Poller) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	list, err := p.svc.Active(ctx)
	if err != nil {
		// Keep the last broadcast list; the next tick retries.
		logging.Ctx(ctx).Warn().Err(err).Msg("Kampai poll failed")
		return
	}
	ids := make([]string, len(list))
	for i, k := range list {
		ids[i] = k.ID
	}
	if p.last != nil && slices.Equal(ids, p.last) {
		return
	}
	p.last = ids
	p.broadcast(list)
}

// String names the service in supervisor logs.
func (p *Poller) String() string {
	return "kampai-poller"
}
