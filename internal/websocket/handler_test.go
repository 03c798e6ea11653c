// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/kampai/internal/auth"
	"github.com/tomtom215/kampai/internal/locations"
	"github.com/tomtom215/kampai/internal/mapview"
	"github.com/tomtom215/kampai/internal/realtime"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type wireMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type testEnv struct {
	server *httptest.Server
	hub    *Hub
	tokens *auth.TokenManager
}

func setupEnv(t *testing.T, rateLimit float64, burst int) *testEnv {
	t.Helper()
	feed := realtime.NewMemoryFeed()
	t.Cleanup(func() { _ = feed.Close() })
	tokens, err := auth.NewTokenManager(testSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	hub := startHub(t)
	h := NewHandler(HandlerConfig{
		Hub:       hub,
		Tokens:    tokens,
		Locations: locations.NewService(locations.NewMemoryStore(), feed),
		Feed:      feed,
		Session: mapview.Config{
			FetchDelay:    10 * time.Millisecond,
			DistrictDelay: 10 * time.Millisecond,
		},
		MessageRate:    rateLimit,
		MessageBurst:   burst,
		AllowedOrigins: []string{"https://kampai.example"},
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, hub: hub, tokens: tokens}
}

func (e *testEnv) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// await reads until a message of type typ arrives.
func await(t *testing.T, conn *websocket.Conn, typ string) wireMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", typ, err)
		}
		var m wireMessage
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		if m.Type == typ {
			return m
		}
	}
}

func TestConnectionReceivesFrames(t *testing.T) {
	t.Parallel()
	env := setupEnv(t, 0, 0)
	conn := env.dial(t, nil)

	m := await(t, conn, MessageTypeFrame)
	var f mapview.Frame
	if err := json.Unmarshal(m.Data, &f); err != nil {
		t.Fatal(err)
	}
	if f.Type != mapview.FrameState {
		t.Errorf("frame type = %q, want %q", f.Type, mapview.FrameState)
	}

	if err := conn.WriteJSON(Command{Type: CommandPing}); err != nil {
		t.Fatal(err)
	}
	await(t, conn, MessageTypePong)

	if err := conn.WriteJSON(Command{Type: CommandFilter, Data: json.RawMessage(`{"category":"castle"}`)}); err != nil {
		t.Fatal(err)
	}
	await(t, conn, MessageTypeError)
}

func TestUnknownAndMalformedCommands(t *testing.T) {
	t.Parallel()
	env := setupEnv(t, 0, 0)
	conn := env.dial(t, nil)

	for _, raw := range []string{`not json`, `{"type":"dance"}`, `{"type":"view","data":{}}`} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatal(err)
		}
		m := await(t, conn, MessageTypeError)
		if len(m.Data) == 0 {
			t.Errorf("%s: error without message", raw)
		}
	}
}

func TestInboundRateLimit(t *testing.T) {
	t.Parallel()
	env := setupEnv(t, 0.001, 1)
	conn := env.dial(t, nil)

	for i := 0; i < 3; i++ {
		if err := conn.WriteJSON(Command{Type: CommandPing}); err != nil {
			t.Fatal(err)
		}
	}
	m := await(t, conn, MessageTypeError)
	if !strings.Contains(string(m.Data), "too many") {
		t.Errorf("error = %s, want rate limit message", m.Data)
	}
}

func TestSignOutClosesAuthenticatedConnection(t *testing.T) {
	t.Parallel()
	env := setupEnv(t, 0, 0)
	token, _, err := env.tokens.Issue("u1", "alice", "user")
	if err != nil {
		t.Fatal(err)
	}
	conn := env.dial(t, http.Header{"Authorization": {"Bearer " + token}})
	await(t, conn, MessageTypeFrame)

	if n := env.hub.DisconnectUser("u1"); n != 1 {
		t.Fatalf("DisconnectUser() = %d, want 1", n)
	}
	await(t, conn, MessageTypeSignedOut)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Errorf("close error = %v, want normal closure", err)
			}
			break
		}
	}
}

func TestCheckOrigin(t *testing.T) {
	t.Parallel()
	env := setupEnv(t, 0, 0)
	url := "ws" + strings.TrimPrefix(env.server.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign origin: err=%v resp=%v, want 403", err, resp)
	}

	env.dial(t, http.Header{"Origin": {"https://kampai.example"}})
}
