// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

/*
Package main is the entry point for the Kampai server.

Kampai is a community server for sharing places on a map: users pin
locations, check in with camp logs and photos, like and comment, chat per
location and announce short "kampai now" gatherings. Clients browse the map
over a websocket that streams clustered marker frames for their viewport.

# Application Architecture

Process supervision uses Suture v4:

	RootSupervisor ("kampai")
	├── DataSupervisor ("data-layer")
	│   ├── Audit Logger (auth events and authorization decisions)
	│   ├── Backup Scheduler (DuckDB snapshots and retention)
	│   └── Check-in Monitor (impossible travel alerts)
	├── RealtimeSupervisor ("realtime-layer")
	│   ├── WebSocket Hub (map frames, chat, kampai broadcasts)
	│   ├── Kampai Poller (active gatherings, pushed to every client)
	│   └── Sign-out Bridge (closes sockets of signed-out users)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (chi router, REST + /api/v1/ws)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, optional YAML file and environment
 2. Logging: zerolog with JSON or console output
 3. Database: DuckDB with the spatial extension
 4. Key-value store: BadgerDB for refresh sessions and the geocode cache
 5. Authorization: Casbin RBAC policy, audited into DuckDB
 6. Audit trail:

	AUDIT_ENABLED=true
	AUDIT_LEVEL=info               # debug also records token refreshes
	AUDIT_RETENTION_DAYS=90

Backups:

	BACKUP_ENABLED=false
	BACKUP_DIR=/data/backups
	BACKUP_INTERVAL=24h
	BACKUP_MAX_COUNT=30

Change feed: in-process or NATS (optionally an embedded server)
 7. Domain services and optional integrations (weather, geocoding, assistant)
 8. Supervisor tree and HTTP server

# Configuration

Core environment variables:

	HTTP_PORT=8080
	ENVIRONMENT=development        # development, production or test
	LOG_LEVEL=info                 # trace, debug, info, warn, error
	LOG_FORMAT=json                # json or console
	DUCKDB_PATH=/data/kampai.duckdb
	JWT_SECRET=<32+ chars>         # required in production
	SESSION_STORE_PATH=/data/sessions
	CORS_ORIGINS=https://kampai.example

Audit trail:

	AUDIT_ENABLED=true
	AUDIT_LEVEL=info               # debug also records token refreshes
	AUDIT_RETENTION_DAYS=90

Change feed:

	REALTIME_BACKEND=memory        # memory or nats
	NATS_URL=nats://127.0.0.1:4222
	NATS_EMBEDDED=true

Image storage:

	STORAGE_BACKEND=memory         # memory or s3
	S3_REGION=us-east-1
	S3_ENDPOINT=http://minio:9000  # S3-compatible services
	PUBLIC_URL=https://kampai.example

Optional integrations, enabled by their API key:

	OPENWEATHER_API_KEY
	GOOGLE_MAPS_API_KEY
	OPENAI_API_KEY

# Graceful Shutdown

SIGINT or SIGTERM cancels the root context. The supervisor stops the HTTP
server (draining requests for SHUTDOWN_TIMEOUT), closes websocket clients,
then the feed, key-value store and database are closed in reverse order.
*/
package main
