// Package api implements the HTTP REST API and WebSocket server.
//
// This package provides:
//   - Read endpoints for bridge health, counters, the command table and the
//     thermostat inventory
//   - A set endpoint that sends one command to a thermostat
//   - WebSocket hub relaying decoded observations ("fht.observation")
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Graceful Degradation
//
// The inventory endpoints answer 503 when the database is disabled. Set
// requests answer 503 while the transceiver is disconnected.
package api
