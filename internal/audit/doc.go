// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package audit keeps a security trail of sign-ins, sign-outs, authorization
// denials and moderation (an admin acting on another user's record).
//
// # Architecture
//
//	auth.Service events ─┐
//	                     ├─> Logger.Log() -> buffer (chan) -> Serve -> Store
//	authz.Enforcer hook ─┘
//
// Log never blocks; a full buffer drops the event with a warning. Serve runs
// under the supervisor tree, writes events and deletes those older than
// RetentionDays every CleanupInterval. Admins read the trail through
// GET /api/v1/admin/audit.
package audit
