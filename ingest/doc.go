// Package ingest accepts telemetry posts and drives them through the
// pipeline: validate, normalize, durable registry upsert, snapshot
// write-through, hub fan-out. The HTTP handler serves the device-facing
// POST /api/live-data endpoint; the Bridge consumes the legacy broker
// subject and feeds the same pipeline through a worker pool.
package ingest
