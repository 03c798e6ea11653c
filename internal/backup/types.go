// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package backup

import (
	"errors"
	"time"
)

// ErrNotFound is returned for an unknown backup ID.
var ErrNotFound = errors.New("backup not found")

// Trigger records what initiated a backup.
type Trigger string

const (
	TriggerManual     Trigger = "manual"
	TriggerScheduled  Trigger = "scheduled"
	TriggerPreRestore Trigger = "pre_restore"
)

// Backup describes one archive.
type Backup struct {
	ID         string        `json:"id"`
	Trigger    Trigger       `json:"trigger"`
	CreatedAt  time.Time     `json:"created_at"`
	Duration   time.Duration `json:"duration"`
	FileName   string        `json:"file_name"`
	FileSize   int64         `json:"file_size"`
	Checksum   string        `json:"checksum"`
	AppVersion string        `json:"app_version"`
	Notes      string        `json:"notes,omitempty"`
	Files      []File        `json:"files"`
}

// File is one entry of an archive.
type File struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// RetentionPolicy decides which archives Prune keeps. Zero disables a rule.
type RetentionPolicy struct {
	// MinCount newest archives are always kept.
	MinCount int `json:"min_count"`
	// MaxCount caps the number of archives kept.
	MaxCount   int `json:"max_count"`
	MaxAgeDays int `json:"max_age_days"`
	// KeepDailyForDays keeps the newest archive of each of the last N days.
	KeepDailyForDays int `json:"keep_daily_for_days"`
}

// DefaultRetentionPolicy keeps a week of dailies and at most 30 archives.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		MinCount:         3,
		MaxCount:         30,
		MaxAgeDays:       30,
		KeepDailyForDays: 7,
	}
}

// Config configures a Manager.
type Config struct {
	Dir string
	// Interval between scheduled backups; zero disables the schedule.
	Interval   time.Duration
	Retention  RetentionPolicy
	AppVersion string
}

// Stats summarizes the backup directory.
type Stats struct {
	Count     int        `json:"count"`
	TotalSize int64      `json:"total_size"`
	Oldest    *time.Time `json:"oldest,omitempty"`
	Newest    *time.Time `json:"newest,omitempty"`
}
