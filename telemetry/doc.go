// Package telemetry defines the domain types for datalogger ingestion:
// the inbound Payload, the per-device Snapshot, and the Device record.
//
// Devices post schema-less JSON with a Device_ID plus an open set of
// scalar telemetry parameters (engine RPM, fuel level, GPS, hour meters,
// diagnostic codes, ...). The parameter set is extensible, so payloads
// are kept as a typed open map rather than a rigid struct; only the
// fields used for routing and display (status, location, firmware,
// machine identity) are lifted into first-class Device attributes.
//
// Normalization follows the dashboard's upsert rules: a device's status
// is derived from Engine_status on every accepted post, first-class
// attributes fall back to their previous value when absent from a
// payload, and the parameter snapshot is replaced in full.
package telemetry
