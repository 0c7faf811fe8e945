// Package wsgate serves live telemetry to dashboard viewers over
// WebSocket. Each viewer authenticates before the upgrade, joins
// either the global feed or one device channel, receives the current
// snapshots as a replay, and then streams updates until it drops.
package wsgate
