// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("Timestamp should default to true")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

// Tests below touch the global logger and therefore do not run in parallel.

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info().Str("bbox", "35.0,139.0").Msg("fetch fired")

	out := buf.String()
	if !strings.Contains(out, `"message":"fetch fired"`) {
		t.Errorf("missing message in %s", out)
	}
	if !strings.Contains(out, `"bbox":"35.0,139.0"`) {
		t.Errorf("missing field in %s", out)
	}
}

func TestCtxAddsIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { Init(DefaultConfig()) })

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithSessionID(ctx, "sess-1")
	ctx = ContextWithUserID(ctx, "user-1")
	Ctx(ctx).Info().Msg("hello")

	out := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"map_session":"sess-1"`, `"user_id":"user-1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}

func TestSlogHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { Init(DefaultConfig()) })

	logger := NewSlogLogger().WithGroup("supervisor").With("service", "http")
	logger.Warn("restarting", "attempt", 2)

	out := buf.String()
	if !strings.Contains(out, `"supervisor.service":"http"`) {
		t.Errorf("grouped attr missing in %s", out)
	}
	if !strings.Contains(out, `"supervisor.attempt":2`) {
		t.Errorf("record attr missing in %s", out)
	}
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("level missing in %s", out)
	}
}

func TestWatermillAdapter(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { Init(DefaultConfig()) })

	adapter := NewWatermillAdapter().With(watermill.LogFields{"topic": "changes.locations"})
	adapter.Error("publish failed", errors.New("boom"), watermill.LogFields{"uuid": "m1"})

	out := buf.String()
	for _, want := range []string{`"topic":"changes.locations"`, `"uuid":"m1"`, `"error":"boom"`, `"component":"realtime"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %s missing %s", out, want)
		}
	}
}
