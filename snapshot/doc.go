// Package snapshot holds the latest telemetry snapshot per device in
// memory. The store is sharded by serial hash with one RWMutex per
// shard, so concurrent puts and gets on different devices never contend
// on a global lock. Writes replace the whole snapshot atomically.
//
// Statistics are always tracked; Prometheus metrics are opt-in via
// WithMetrics.
package snapshot
