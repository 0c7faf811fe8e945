package registry

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
	"github.com/Hardikdarji921/esp32-datalogger/natsclient"
	"github.com/Hardikdarji921/esp32-datalogger/telemetry"
)

// KVStore persists devices in a NATS JetStream key-value bucket, one
// entry per serial. Upserts go through the client's CAS retry loop so
// concurrent writers serialize per device.
type KVStore struct {
	bucket  jetstream.KeyValue
	kvStore *natsclient.KVStore
	cascade CascadeFunc
}

// KVStoreOption configures a KVStore.
type KVStoreOption func(*KVStore)

// WithCascade runs fn before a device record is deleted, letting the
// caller remove the device's log folders in the same operation.
func WithCascade(fn CascadeFunc) KVStoreOption {
	return func(s *KVStore) {
		s.cascade = fn
	}
}

// NewKVStore creates the device bucket if needed and returns a store
// backed by it.
func NewKVStore(client *natsclient.Client, bucketName string, opts ...KVStoreOption) (*KVStore, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "DeviceRegistry", "NewKVStore", "nats client is nil")
	}

	bucket, err := client.CreateKeyValueBucket(context.Background(), jetstream.KeyValueConfig{
		Bucket:      bucketName,
		Description: "Device registry, one record per datalogger serial",
		History:     10,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "DeviceRegistry", "NewKVStore", "create KV bucket")
	}

	s := &KVStore{
		bucket:  bucket,
		kvStore: client.NewKVStore(bucket),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Upsert applies update inside a CAS read-modify-write loop. The update
// function may run more than once when writers conflict; only the
// attempt that wins the CAS is returned.
func (s *KVStore) Upsert(ctx context.Context, serial string, update UpdateFunc) (telemetry.Device, error) {
	if serial == "" {
		return telemetry.Device{}, errors.WrapInvalid(errors.ErrMissingDeviceID,
			"DeviceRegistry", "Upsert", "check serial")
	}

	var written telemetry.Device
	err := s.kvStore.UpdateWithRetry(ctx, serial, func(current []byte) ([]byte, error) {
		var device telemetry.Device
		if len(current) == 0 {
			device = telemetry.NewDevice(serial)
		} else if err := json.Unmarshal(current, &device); err != nil {
			return nil, errors.WrapFatal(err, "DeviceRegistry", "Upsert", "unmarshal device")
		}

		if err := update(&device); err != nil {
			return nil, err
		}

		written = device
		return json.Marshal(device)
	})
	if err != nil {
		if errors.IsInvalid(err) {
			return telemetry.Device{}, err
		}
		return telemetry.Device{}, errors.WrapTransient(err, "DeviceRegistry", "Upsert", "CAS update")
	}

	return written, nil
}

// Get returns the device with the given serial.
func (s *KVStore) Get(ctx context.Context, serial string) (telemetry.Device, error) {
	if serial == "" {
		return telemetry.Device{}, errors.WrapInvalid(errors.ErrMissingDeviceID,
			"DeviceRegistry", "Get", "check serial")
	}

	entry, err := s.kvStore.Get(ctx, serial)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return telemetry.Device{}, errors.WrapInvalid(errors.ErrDeviceNotFound,
				"DeviceRegistry", "Get", "lookup "+serial)
		}
		return telemetry.Device{}, errors.WrapTransient(err, "DeviceRegistry", "Get", "get from KV")
	}

	var device telemetry.Device
	if err := json.Unmarshal(entry.Value, &device); err != nil {
		return telemetry.Device{}, errors.WrapFatal(err, "DeviceRegistry", "Get", "unmarshal device")
	}
	return device, nil
}

// List returns all devices in ascending serial order. Records deleted
// between the key listing and the reads are skipped.
func (s *KVStore) List(ctx context.Context) ([]telemetry.Device, error) {
	keys, err := s.bucket.Keys(ctx)
	if err != nil {
		// An empty bucket is an empty fleet, not a failure.
		if stderrors.Is(err, jetstream.ErrNoKeysFound) {
			return []telemetry.Device{}, nil
		}
		return nil, errors.WrapTransient(err, "DeviceRegistry", "List", "list KV keys")
	}
	sort.Strings(keys)

	devices := make([]telemetry.Device, 0, len(keys))
	for _, key := range keys {
		device, err := s.Get(ctx, key)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return nil, errors.WrapTransient(err, "DeviceRegistry", "List",
				fmt.Sprintf("get device %s", key))
		}
		devices = append(devices, device)
	}
	return devices, nil
}

// Delete removes the device record after running the cascade hook.
func (s *KVStore) Delete(ctx context.Context, serial string) error {
	if _, err := s.Get(ctx, serial); err != nil {
		return err
	}

	if s.cascade != nil {
		if err := s.cascade(ctx, serial); err != nil {
			return errors.WrapTransient(err, "DeviceRegistry", "Delete", "cascade delete")
		}
	}

	if err := s.kvStore.Delete(ctx, serial); err != nil {
		return errors.WrapTransient(err, "DeviceRegistry", "Delete", "delete from KV")
	}
	return nil
}
