// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package websocket

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/kampai/internal/logging"
	"github.com/tomtom215/kampai/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// fakeClient is a client without a connection; tests read its send channel.
func fakeClient(hub *Hub, userID string) *Client {
	return NewClient(context.Background(), hub, nil, userID, nil)
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case m, ok := <-c.send:
		return m, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a message")
		return Message{}, false
	}
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	t.Parallel()
	hub := startHub(t)
	a, b := fakeClient(hub, ""), fakeClient(hub, "u1")
	hub.register(a)
	hub.register(b)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("ClientCount() = %d, want 2", got)
	}

	hub.BroadcastJSON("hello", map[string]int{"n": 1})
	for _, c := range []*Client{a, b} {
		m, ok := receive(t, c)
		if !ok || m.Type != "hello" {
			t.Errorf("client %d got %+v ok=%v, want hello", c.ID(), m, ok)
		}
	}
}

func TestHubKampaiReplayedToNewClients(t *testing.T) {
	t.Parallel()
	hub := startHub(t)
	hub.BroadcastKampai([]models.KampaiNow{{ID: "k1"}})

	late := fakeClient(hub, "")
	hub.register(late)
	m, ok := receive(t, late)
	if !ok || m.Type != MessageTypeKampai {
		t.Fatalf("late client got %+v, want kampai replay", m)
	}
	list, _ := m.Data.([]models.KampaiNow)
	if len(list) != 1 || list[0].ID != "k1" {
		t.Errorf("replayed list = %+v, want [k1]", list)
	}
}

func TestHubDisconnectUser(t *testing.T) {
	t.Parallel()
	hub := NewHub()
	mine1, mine2, other := fakeClient(hub, "u1"), fakeClient(hub, "u1"), fakeClient(hub, "u2")
	for _, c := range []*Client{mine1, mine2, other} {
		hub.register(c)
	}

	if n := hub.DisconnectUser("u1"); n != 2 {
		t.Fatalf("DisconnectUser() = %d, want 2", n)
	}
	for _, c := range []*Client{mine1, mine2} {
		m, ok := receive(t, c)
		if !ok || m.Type != MessageTypeSignedOut {
			t.Errorf("got %+v ok=%v, want signed_out", m, ok)
		}
		if _, ok := receive(t, c); ok {
			t.Error("send channel still open after sign-out")
		}
		if c.Enqueue(Message{Type: "late"}) {
			t.Error("Enqueue() on a closed client = true")
		}
	}
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}
	if n := hub.DisconnectUser(""); n != 0 {
		t.Errorf("DisconnectUser(\"\") = %d, want 0", n)
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	t.Parallel()
	c := fakeClient(NewHub(), "")
	for i := 0; i < sendBuffer; i++ {
		if !c.Enqueue(Message{Type: "x"}) {
			t.Fatalf("Enqueue() #%d = false before the buffer filled", i)
		}
	}
	if c.Enqueue(Message{Type: "overflow"}) {
		t.Error("Enqueue() on a full buffer = true, want false")
	}
}

func TestHubServeClosesClientsOnShutdown(t *testing.T) {
	t.Parallel()
	hub := NewHub()
	c := fakeClient(hub, "")
	hub.register(c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := hub.Serve(ctx); err != context.Canceled {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
	if _, ok := receive(t, c); ok {
		t.Error("client still open after hub shutdown")
	}
	if hub.String() != "websocket-hub" {
		t.Errorf("String() = %q", hub.String())
	}
}
