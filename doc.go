// Package datalogger is the telemetry backbone for vehicle-mounted
// ESP32 dataloggers. Devices post JSON readings over HTTP or publish
// them through the NATS broker; the service validates each payload,
// maintains the durable device registry in NATS KV, keeps an in-memory
// snapshot of every device's latest parameters, and fans updates out
// to dashboard viewers over WebSocket in real time.
//
// # Data path
//
//	device ──HTTP POST /api/live-data──┐
//	                                   ├─► ingest ─► registry (NATS KV)
//	broker ──NATS subject──► bridge ───┘      │
//	                                          ├─► snapshot cache
//	                                          └─► hub ─► wsgate ─► viewers
//
// A payload only reaches the snapshot cache and the fan-out hub after
// the registry write succeeds, so every broadcast reflects durable
// state. Viewers joining a channel first receive the current snapshots
// as a replay, then live updates.
//
// # Packages
//
// Telemetry path:
//   - telemetry: payload validation, device records, snapshots
//   - ingest: ingestion service, HTTP handler, broker bridge
//   - registry: durable device registry on NATS KV
//   - snapshot: sharded in-memory latest-value cache
//   - hub: per-device and global fan-out channels
//   - wsgate: authenticated WebSocket viewer gateway
//
// Dashboard API:
//   - server: REST routes, CORS, request IDs, token middleware
//   - auth: accounts, JWT sessions, password recovery, admin ops
//   - logfiles: per-device log folder and file records
//
// Infrastructure:
//   - natsclient: NATS connection management and KV helpers
//   - config: file, defaults, and DATALOGGER_* env layering
//   - metric: Prometheus registry and metrics endpoint
//   - errors: classified error handling
//   - health: component health monitoring
//   - pkg/buffer, pkg/worker, pkg/retry: bounded queues, worker
//     pools, retry policies
//
// # Binary
//
//	# Run against a local NATS with defaults
//	DATALOGGER_AUTH_SECRET=changeme ./bin/dataloggerd
//
//	# Run with a config file
//	./bin/dataloggerd --config=/etc/datalogger/config.json
package datalogger
