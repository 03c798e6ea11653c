// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package realtime is the row-level change feed.
//
// Stores publish a Change after every committed insert, update or delete.
// Consumers subscribe per table with an optional column=value filter and must
// call Unsubscribe when the view that asked for the feed goes away. Delivery
// is best effort and unordered relative to any query the consumer runs
// itself; consumers that merge both apply whichever arrives last.
package realtime

import (
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// EventType is the kind of row change.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Tables that publish changes.
const (
	TableLocations        = "locations"
	TableCampLogs         = "camp_logs"
	TableCampLogImages    = "camp_log_images"
	TableCampLogComments  = "camp_log_comments"
	TableKampaiNow        = "kampai_now"
	TableLocationMessages = "location_messages"
	TableActivities       = "activities"
	TableLikes            = "likes"
)

// ErrNoRecord is returned by Decode when the change carries no row image.
var ErrNoRecord = errors.New("change has no record")

// Change is one row-level event. New is set for inserts and updates, Old for
// updates and deletes.
type Change struct {
	ID         string          `json:"id"`
	Table      string          `json:"table"`
	Type       EventType       `json:"type"`
	New        json.RawMessage `json:"new,omitempty"`
	Old        json.RawMessage `json:"old,omitempty"`
	CommitTime time.Time       `json:"commit_time"`
}

// NewChange encodes the row images. Either may be nil.
func NewChange(table string, typ EventType, newRow, oldRow any) (Change, error) {
	c := Change{Table: table, Type: typ, CommitTime: time.Now().UTC()}
	var err error
	if newRow != nil {
		if c.New, err = json.Marshal(newRow); err != nil {
			return Change{}, fmt.Errorf("encode new row: %w", err)
		}
	}
	if oldRow != nil {
		if c.Old, err = json.Marshal(oldRow); err != nil {
			return Change{}, fmt.Errorf("encode old row: %w", err)
		}
	}
	return c, nil
}

// Record returns the row image most relevant to the event: Old for deletes,
// New otherwise.
func (c Change) Record() json.RawMessage {
	if c.Type == EventDelete {
		return c.Old
	}
	return c.New
}

// Decode unmarshals Record into v.
func (c Change) Decode(v any) error {
	rec := c.Record()
	if len(rec) == 0 {
		return ErrNoRecord
	}
	return json.Unmarshal(rec, v)
}

// Field returns a top-level field of Record rendered as a string.
func (c Change) Field(name string) (string, bool) {
	var row map[string]any
	if err := c.Decode(&row); err != nil {
		return "", false
	}
	v, ok := row[name]
	if !ok || v == nil {
		return "", false
	}
	switch tv := v.(type) {
	case string:
		return tv, true
	default:
		return fmt.Sprint(tv), true
	}
}

// Filter selects the changes a subscriber wants. An empty Column matches
// every row of Table.
type Filter struct {
	Table  string
	Column string
	Value  string
	Events []EventType
}

// Matches reports whether c passes f.
func (f Filter) Matches(c Change) bool {
	if f.Table != "" && f.Table != c.Table {
		return false
	}
	if len(f.Events) > 0 {
		found := false
		for _, e := range f.Events {
			if e == c.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Column == "" {
		return true
	}
	v, ok := c.Field(f.Column)
	return ok && v == f.Value
}

func topic(table string) string {
	return "changes." + table
}
