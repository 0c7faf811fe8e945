package registry

import (
	"context"

	"github.com/Hardikdarji921/esp32-datalogger/telemetry"
)

// UpdateFunc mutates a device inside an upsert. For an unknown serial
// the store passes a freshly discovered device; the function must not
// assume any previous payload was applied.
type UpdateFunc func(device *telemetry.Device) error

// CascadeFunc removes resources owned by a device before the device
// record itself is deleted, such as its log folder hierarchy.
type CascadeFunc func(ctx context.Context, serial string) error

// Store is the device registry contract shared by the durable and
// in-memory implementations.
type Store interface {
	// Upsert applies update to the device with the given serial,
	// creating the device on first contact. The returned device is the
	// state that was durably written.
	Upsert(ctx context.Context, serial string, update UpdateFunc) (telemetry.Device, error)

	// Get returns the device with the given serial, or ErrDeviceNotFound.
	Get(ctx context.Context, serial string) (telemetry.Device, error)

	// List returns all devices in ascending serial order.
	List(ctx context.Context) ([]telemetry.Device, error)

	// Delete removes the device and cascades its owned resources.
	// Returns ErrDeviceNotFound for an unknown serial.
	Delete(ctx context.Context, serial string) error
}
