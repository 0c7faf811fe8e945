package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
	"github.com/Hardikdarji921/esp32-datalogger/telemetry"
)

// MemStore is an in-memory Store with the same per-device atomicity as
// KVStore: the whole upsert runs under the lock, so an update either
// lands in full or not at all.
type MemStore struct {
	mu      sync.RWMutex
	devices map[string]telemetry.Device
	cascade CascadeFunc
}

// MemStoreOption configures a MemStore.
type MemStoreOption func(*MemStore)

// WithMemCascade runs fn before a device record is deleted.
func WithMemCascade(fn CascadeFunc) MemStoreOption {
	return func(s *MemStore) {
		s.cascade = fn
	}
}

// NewMemStore creates an empty in-memory registry.
func NewMemStore(opts ...MemStoreOption) *MemStore {
	s := &MemStore{devices: make(map[string]telemetry.Device)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upsert applies update under the store lock, creating the device on
// first contact. A failed update leaves the stored record untouched.
func (s *MemStore) Upsert(_ context.Context, serial string, update UpdateFunc) (telemetry.Device, error) {
	if serial == "" {
		return telemetry.Device{}, errors.WrapInvalid(errors.ErrMissingDeviceID,
			"DeviceRegistry", "Upsert", "check serial")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	device, ok := s.devices[serial]
	if !ok {
		device = telemetry.NewDevice(serial)
	} else {
		device = device.Clone()
	}

	if err := update(&device); err != nil {
		return telemetry.Device{}, err
	}

	s.devices[serial] = device
	return device.Clone(), nil
}

// Get returns the device with the given serial.
func (s *MemStore) Get(_ context.Context, serial string) (telemetry.Device, error) {
	s.mu.RLock()
	device, ok := s.devices[serial]
	s.mu.RUnlock()

	if !ok {
		return telemetry.Device{}, errors.WrapInvalid(errors.ErrDeviceNotFound,
			"DeviceRegistry", "Get", "lookup "+serial)
	}
	return device.Clone(), nil
}

// List returns all devices in ascending serial order.
func (s *MemStore) List(_ context.Context) ([]telemetry.Device, error) {
	s.mu.RLock()
	serials := make([]string, 0, len(s.devices))
	for serial := range s.devices {
		serials = append(serials, serial)
	}
	sort.Strings(serials)

	devices := make([]telemetry.Device, 0, len(serials))
	for _, serial := range serials {
		devices = append(devices, s.devices[serial].Clone())
	}
	s.mu.RUnlock()

	return devices, nil
}

// Delete removes the device record after running the cascade hook.
func (s *MemStore) Delete(ctx context.Context, serial string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[serial]; !ok {
		return errors.WrapInvalid(errors.ErrDeviceNotFound,
			"DeviceRegistry", "Delete", "lookup "+serial)
	}

	if s.cascade != nil {
		if err := s.cascade(ctx, serial); err != nil {
			return errors.WrapTransient(err, "DeviceRegistry", "Delete", "cascade delete")
		}
	}

	delete(s.devices, serial)
	return nil
}
