// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package debounce

import (
	"sync/atomic"
	"testing"
	"time"
)

const testDelay = 40 * time.Millisecond

func TestTimerFiresOnceAfterQuiescence(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var last atomic.Int32
	tm := New(testDelay)

	for i := 1; i <= 5; i++ {
		v := int32(i)
		tm.Start(func() {
			calls.Add(1)
			last.Store(v)
		})
		time.Sleep(testDelay / 4)
	}

	time.Sleep(testDelay * 3)
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("last = %d, want 5 (only the newest callback runs)", got)
	}
	if tm.Pending() {
		t.Error("Pending() should be false after firing")
	}
}

func TestTimerCancel(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	tm := New(testDelay)
	tm.Start(func() { calls.Add(1) })

	if !tm.Cancel() {
		t.Error("Cancel() = false, want true with a pending callback")
	}
	if tm.Cancel() {
		t.Error("second Cancel() = true, want false")
	}

	time.Sleep(testDelay * 3)
	if got := calls.Load(); got != 0 {
		t.Errorf("calls = %d, want 0 after cancel", got)
	}
}

func TestTimerReset(t *testing.T) {
	t.Parallel()

	var fired atomic.Int64
	tm := New(testDelay)

	if tm.Reset() {
		t.Error("Reset() on idle timer = true, want false")
	}

	start := time.Now()
	tm.Start(func() { fired.Store(time.Since(start).Nanoseconds()) })
	time.Sleep(testDelay / 2)
	if !tm.Reset() {
		t.Fatal("Reset() = false with pending callback")
	}

	time.Sleep(testDelay * 3)
	elapsed := time.Duration(fired.Load())
	if elapsed == 0 {
		t.Fatal("callback never fired")
	}
	if elapsed < testDelay+testDelay/2-5*time.Millisecond {
		t.Errorf("fired after %v, Reset should have pushed the deadline past %v", elapsed, testDelay+testDelay/2)
	}
}

func TestTimerFlush(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	tm := New(time.Hour)

	if tm.Flush() {
		t.Error("Flush() on idle timer = true")
	}
	tm.Start(func() { calls.Add(1) })
	if !tm.Flush() {
		t.Fatal("Flush() = false with pending callback")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if tm.Pending() {
		t.Error("Flush should consume the pending callback")
	}
}

func TestTimerStop(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	tm := New(testDelay)
	tm.Start(func() { calls.Add(1) })
	tm.Stop()

	if tm.Start(func() { calls.Add(1) }) {
		t.Error("Start after Stop should return false")
	}
	time.Sleep(testDelay * 3)
	if calls.Load() != 0 {
		t.Errorf("calls = %d, want 0 after Stop", calls.Load())
	}
}

func TestTimerStaleFiringIgnored(t *testing.T) {
	t.Parallel()

	tm := New(time.Hour)
	var calls atomic.Int32
	tm.Start(func() { calls.Add(1) })

	tm.mu.Lock()
	stale := tm.gen - 1
	tm.mu.Unlock()

	tm.fire(stale)
	if calls.Load() != 0 {
		t.Error("a firing from a superseded arm must not run the callback")
	}
	tm.Cancel()
}
