// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

/*
Package services adapts server components to suture.Service.

Components whose lifecycle already is Serve(ctx) error (the websocket hub,
the kampai poller) are added to the tree directly. The wrappers here cover
the rest:

  - HTTPServerService: http.Server with graceful shutdown
  - SignOutService: closes a user's websocket connections when the auth
    service reports a sign-out
*/
package services
