// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(ttl time.Duration) (*Cache[string], *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := New[string]("test", ttl, 0)
	c.now = clock.Now
	return c, clock
}

func TestCacheBasicOperations(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(time.Minute)
	c.Set("key1", "value1")

	got, ok := c.Get("key1")
	if !ok || got != "value1" {
		t.Errorf("Get(key1) = %q, %v, want value1, true", got, ok)
	}
	if _, ok := c.Get("key2"); ok {
		t.Error("Get(key2) should miss")
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Keys != 1 {
		t.Errorf("Stats() = %+v", s)
	}
	if c.HitRate() != 50 {
		t.Errorf("HitRate() = %v, want 50", c.HitRate())
	}
}

func TestCacheExpiration(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(10 * time.Minute)
	c.Set("tokyo", "sun")

	clock.Advance(9 * time.Minute)
	if _, ok := c.Get("tokyo"); !ok {
		t.Fatal("entry should still be fresh")
	}
	clock.Advance(time.Minute)
	if _, ok := c.Get("tokyo"); ok {
		t.Error("entry should expire at exactly ttl")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, expired entry should be dropped on Get", c.Len())
	}
}

func TestCacheCustomTTLAndSweep(t *testing.T) {
	t.Parallel()

	c, clock := newTestCache(time.Hour)
	c.SetWithTTL("short", "a", time.Second)
	c.Set("long", "b")

	clock.Advance(2 * time.Second)
	c.cleanup()

	if c.Len() != 1 {
		t.Errorf("Len() = %d after sweep, want 1", c.Len())
	}
	if s := c.Stats(); s.Evictions != 1 || s.LastCleanup.IsZero() {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestCacheDeleteAndClear(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(time.Minute)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), "v")
	}
	c.Delete("k0")
	c.Delete("missing")
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear", c.Len())
	}
	if s := c.Stats(); s.Evictions != 3 {
		t.Errorf("Evictions = %d, want 3", s.Evictions)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := New[int]("concurrent", time.Minute, time.Millisecond)
	defer c.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%10)
				c.Set(key, g*i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() != 10 {
		t.Errorf("Len() = %d, want 10", c.Len())
	}
	c.Close()
}
