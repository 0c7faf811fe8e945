// Package server assembles the dashboard REST API: telemetry
// ingestion, device listings, log file browsing, account management,
// admin operations, the WebSocket feed, and health reporting, behind
// shared CORS, request ID, and token middleware.
package server
