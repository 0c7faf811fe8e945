package telemetry

import "time"

// Snapshot is the most recent parameter set for one device, kept in the
// in-memory snapshot store and replayed to subscribers on join.
type Snapshot struct {
	Serial     string         `json:"serial"`
	Params     map[string]any `json:"params"`
	CapturedAt time.Time      `json:"captured_at"`
}

// NewSnapshot captures the payload's scalar parameters at a point in time.
func NewSnapshot(serial string, p Payload, now time.Time) Snapshot {
	return Snapshot{
		Serial:     serial,
		Params:     p.Params(),
		CapturedAt: now,
	}
}
