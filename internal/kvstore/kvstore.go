// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package kvstore opens the embedded BadgerDB shared by the geocode cache
// and the refresh-session store. Each user keeps to its own key prefix.
package kvstore

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Open opens (or creates) the store at path. An empty path opens an
// in-memory store that is lost on Close.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return db, nil
}
