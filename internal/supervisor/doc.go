// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

/*
Package supervisor runs the server's long-lived services under suture v4.

The tree has three layers below the root:

	kampai
	├── data-layer       audit logger, backup scheduler, check-in monitor
	├── realtime-layer   websocket hub, kampai poller, sign-out bridge
	└── api-layer        HTTP server

A crash in one layer restarts only that layer's service; the HTTP
API keeps serving. Supervisor events are logged through sutureslog into the
zerolog logger.
*/
package supervisor
