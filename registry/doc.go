// Package registry is the durable device registry. Devices are
// auto-discovered on first contact and updated with a compare-and-swap
// read-modify-write loop, so racing posts for the same serial never
// produce a record mixing two payloads' fields.
//
// KVStore persists devices in a NATS JetStream key-value bucket and is
// the production implementation. MemStore keeps the same contract in
// memory for tests and single-node development.
package registry
