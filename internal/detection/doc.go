// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

/*
Package detection flags check-ins that are physically implausible.

The Monitor subscribes to camp_logs inserts on the change feed, so detection
never slows down the check-in request itself:

	checkin.Service ──INSERT camp_logs──▶ realtime.Feed ──▶ Monitor
	                                                          │
	                                       ImpossibleTravelDetector.Check
	                                                          │
	                                            Alert ──▶ sinks (audit trail)

# Impossible Travel

A check-in is flagged when reaching it from the same user's previous
check-in would need a speed above MaxSpeedKmH. Pairs closer than
MinDistanceKm are ignored, which keeps neighbouring campsites quiet. The
default of 900 km/h allows for domestic flights.

Alerts do not block or remove the check-in. They are logged, counted in
kampai_detection_alerts_total and passed to every sink; the server records
them in the audit trail for moderators.
*/
package detection
