// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

/*
Package websocket is the realtime transport of the map client.

Every connection owns one mapview.Session. The client sends commands (view
changes, clicks, filter changes) and receives the session's frames. A
connection may also follow one location chat room at a time.

Key Components:

  - Hub: tracks connections and broadcasts to all of them (the active kampai
    list) or to one user's connections (sign-out)
  - Client: one connection with a read pump and a write pump
  - Handler: upgrades HTTP requests and wires a Client to its session

Architecture:

	         ┌───────────┐
	         │    Hub    │ ← kampai broadcasts, sign-out
	         └─────┬─────┘
	     ┌─────────┼─────────┐
	  Client1   Client2   Client3
	     │         │         │
	  Session   Session   Session   ← mapview reducer goroutine each

Each client has two goroutines:
  - readPump: decodes commands, applies the inbound rate limit, forwards
    them to the session or chat room
  - writePump: writes queued messages and keepalive pings

Messages to the client:

	frame       mapview.Frame, the full visible map state
	kampai      []models.KampaiNow, the active announcements
	chat        []models.ChatMessage, the followed room after every change
	pong        reply to ping
	error       {"message": "..."} for rejected commands
	signed_out  the user signed out; the connection closes after it

Commands from the client:

	ping, view, search, filter, click_marker, click_cluster, click_map,
	districts, click_district, clear_selection, join_chat, leave_chat

Send buffers are bounded. A client that cannot keep up loses messages
(counted in kampai_websocket_messages_dropped_total); since every frame is a
complete state, the next one repairs the view.
*/
package websocket
