// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package debounce provides a cancellable quiescence timer.
//
// A Timer holds at most one pending callback. Every Start or Reset pushes the
// deadline out by the configured delay; the callback runs once the timer has
// been left alone for that long. Cancel drops the pending callback and
// guarantees it will not run, even if the underlying time.Timer already
// fired and is racing to acquire the lock.
package debounce

import (
	"sync"
	"time"
)

// Timer is safe for concurrent use.
type Timer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	fn      func()
	gen     uint64 // bumped on every arm/cancel; a firing with an old gen is ignored
	stopped bool
}

// New returns a Timer with the given quiescence delay.
func New(delay time.Duration) *Timer {
	return &Timer{delay: delay}
}

// Delay returns the quiescence delay.
func (t *Timer) Delay() time.Duration {
	return t.delay
}

// Start replaces the pending callback with fn and restarts the window.
// It returns false if the timer has been stopped.
func (t *Timer) Start(fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return false
	}
	t.fn = fn
	t.armLocked()
	return true
}

// Reset restarts the window for the pending callback. It returns false when
// nothing is pending.
func (t *Timer) Reset() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.fn == nil {
		return false
	}
	t.armLocked()
	return true
}

// Cancel drops the pending callback. It returns true if one was pending.
func (t *Timer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelLocked()
}

// Flush runs the pending callback immediately on the caller's goroutine.
// It returns false when nothing was pending.
func (t *Timer) Flush() bool {
	t.mu.Lock()
	fn := t.fn
	if t.stopped || fn == nil {
		t.mu.Unlock()
		return false
	}
	t.cancelLocked()
	t.mu.Unlock()

	fn()
	return true
}

// Pending reports whether a callback is waiting to fire.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fn != nil
}

// Stop cancels any pending callback and makes every later Start fail.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
	t.stopped = true
}

func (t *Timer) armLocked() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.delay, func() { t.fire(gen) })
}

func (t *Timer) cancelLocked() bool {
	pending := t.fn != nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.fn = nil
	t.gen++
	return pending
}

func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.fn == nil {
		t.mu.Unlock()
		return
	}
	fn := t.fn
	t.fn = nil
	t.timer = nil
	t.mu.Unlock()

	fn()
}
