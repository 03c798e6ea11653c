// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package geocode

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/kampai/internal/metrics"
)

const (
	DefaultMaxEntries = 100
	DefaultMaxAge     = 7 * 24 * time.Hour

	keyPrefix = "geocode:"
)

// Entry is one cached reverse-geocode result.
type Entry struct {
	Address   string    `json:"address"`
	Timestamp time.Time `json:"timestamp"`
}

// Cache stores addresses by rounded coordinate key in BadgerDB. It holds at
// most MaxEntries entries, none older than MaxAge; both limits are enforced
// when writing.
type Cache struct {
	db         *badger.DB
	maxEntries int
	maxAge     time.Duration
	now        func() time.Time

	// Serializes Put so eviction sees a consistent key set.
	mu sync.Mutex
}

// NewCache wraps db. Zero limits take the defaults.
func NewCache(db *badger.DB, maxEntries int, maxAge time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Cache{db: db, maxEntries: maxEntries, maxAge: maxAge, now: time.Now}
}

// Get returns the address for key when an entry younger than MaxAge exists.
func (c *Cache) Get(key string) (string, bool, error) {
	var e Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.GeocodeCacheRequests.WithLabelValues("miss").Inc()
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read geocode cache: %w", err)
	}
	if c.now().Sub(e.Timestamp) >= c.maxAge {
		metrics.GeocodeCacheRequests.WithLabelValues("stale").Inc()
		return "", false, nil
	}
	metrics.GeocodeCacheRequests.WithLabelValues("hit").Inc()
	return e.Address, true, nil
}

// Put stores address under key stamped with the current time, then evicts
// expired entries and, if still over the limit, the oldest ones. An empty
// address is not stored.
func (c *Cache) Put(key, address string) error {
	if address == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(Entry{Address: address, Timestamp: c.now()})
	if err != nil {
		return fmt.Errorf("encode geocode entry: %w", err)
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), data)
	}); err != nil {
		return fmt.Errorf("write geocode cache: %w", err)
	}
	return c.evictLocked()
}

type keyed struct {
	key string
	ts  time.Time
}

func (c *Cache) evictLocked() error {
	entries, err := c.scan()
	if err != nil {
		return err
	}

	now := c.now()
	var drop []string
	live := entries[:0]
	for _, e := range entries {
		if now.Sub(e.ts) >= c.maxAge {
			drop = append(drop, e.key)
			continue
		}
		live = append(live, e)
	}
	if len(live) > c.maxEntries {
		sort.Slice(live, func(i, j int) bool { return live[i].ts.After(live[j].ts) })
		for _, e := range live[c.maxEntries:] {
			drop = append(drop, e.key)
		}
		live = live[:c.maxEntries]
	}
	metrics.GeocodeCacheSize.Set(float64(len(live)))
	if len(drop) == 0 {
		return nil
	}

	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range drop {
		if err := wb.Delete([]byte(k)); err != nil {
			return fmt.Errorf("evict geocode entry: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("evict geocode entries: %w", err)
	}
	return nil
}

// scan returns every entry's raw key and timestamp.
func (c *Cache) scan() ([]keyed, error) {
	var out []keyed
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var e Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				// Unreadable entries count as expired.
				e = Entry{}
			}
			out = append(out, keyed{key: string(item.KeyCopy(nil)), ts: e.Timestamp})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan geocode cache: %w", err)
	}
	return out, nil
}

// Len returns the number of stored entries, fresh or not.
func (c *Cache) Len() (int, error) {
	entries, err := c.scan()
	return len(entries), err
}
