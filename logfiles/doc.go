// Package logfiles models the per-device log hierarchy: each device
// owns folders, each folder owns file entries describing logs the
// datalogger has uploaded. Records live in a NATS KV bucket and are
// cascade-deleted with their folder or device.
package logfiles
