// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

package models

import "errors"

// Errors shared by every store implementation and the services above them.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("sign-in required")

	// ErrCheckInTooSoon is returned by a store that refuses a check-in
	// because the user already checked in at the location recently.
	ErrCheckInTooSoon = errors.New("already checked in here within the last 12 hours")
)
