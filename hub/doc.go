// Package hub fans telemetry snapshots out to live subscribers.
//
// Each subscriber owns a bounded DropOldest queue, so a stalled viewer
// loses its own oldest frames while every other subscriber keeps
// receiving in publish order. Subscribe registers the sink before
// reading the snapshot store, closing the window where an update could
// fire between connection and registration; the worst case for a new
// viewer is seeing the same snapshot twice, never missing one.
//
// Channel keys are per-device (DeviceChannel) or the single legacy
// broker channel (GlobalChannel).
package hub
