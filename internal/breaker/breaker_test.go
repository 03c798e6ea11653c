// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package breaker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/kampai/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	t.Parallel()

	cb := New[int]("test-open", Settings{MinRequests: 3, Timeout: time.Hour})
	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d error = %v, want boom", i, err)
		}
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}

	called := false
	_, err := cb.Execute(func() (int, error) { called = true; return 1, nil })
	if !Rejected(err) || called {
		t.Errorf("open breaker: err = %v called = %v", err, called)
	}
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	t.Parallel()

	cb := New[int]("test-cancel", Settings{MinRequests: 2})
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (int, error) { return 0, context.Canceled })
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("State() = %v, cancellations should not trip", cb.State())
	}
}

func TestRejected(t *testing.T) {
	t.Parallel()

	if Rejected(errors.New("x")) {
		t.Error("plain error is not a rejection")
	}
	if !Rejected(gobreaker.ErrTooManyRequests) {
		t.Error("ErrTooManyRequests is a rejection")
	}
}
