// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer runs an in-process NATS server so that a single node can
// use the NATS transport (and let sidecars tap the change stream) without an
// external broker.
type EmbeddedServer struct {
	server *server.Server
}

// StartEmbeddedServer starts NATS on host:port. Port -1 picks a random port.
func StartEmbeddedServer(host string, port int) (*EmbeddedServer, error) {
	ns, err := server.NewServer(&server.Options{
		ServerName: "kampai-realtime",
		Host:       host,
		Port:       port,
		NoSigs:     true,
		MaxPayload: 1 << 20,
	})
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}
	ns.ConfigureLogger()

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("embedded NATS server not ready within 10s")
	}
	return &EmbeddedServer{server: ns}, nil
}

// ClientURL is the nats:// URL clients should dial.
func (s *EmbeddedServer) ClientURL() string {
	return s.server.ClientURL()
}

// IsRunning reports server health.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// Shutdown stops the server and waits for it unless ctx ends first.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()
	done := make(chan struct{})
	go func() {
		s.server.WaitForShutdown()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
