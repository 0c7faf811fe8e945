package registry

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	claserr "github.com/Hardikdarji921/esp32-datalogger/errors"
	"github.com/Hardikdarji921/esp32-datalogger/telemetry"
)

// applyRaw parses raw JSON and overlays it onto the device the way the
// ingestion path does.
func applyRaw(t *testing.T, raw string) UpdateFunc {
	t.Helper()
	p, err := telemetry.ParsePayload([]byte(raw))
	require.NoError(t, err)
	return func(d *telemetry.Device) error {
		return d.ApplyPayload(p, time.Now())
	}
}

func TestMemStore_UpsertCreatesOnFirstContact(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	device, err := store.Upsert(ctx, "AP550-0042", applyRaw(t, `{
		"Device_ID": "AP550-0042",
		"machine_model": "AP550",
		"Engine_status": "ON",
		"Engine_rpm": 1500
	}`))
	require.NoError(t, err)

	assert.NotEmpty(t, device.ID)
	assert.Equal(t, "AP550-0042", device.Serial)
	assert.Equal(t, "AP550", device.Name)
	assert.Equal(t, telemetry.StatusOnline, device.Status)

	got, err := store.Get(ctx, "AP550-0042")
	require.NoError(t, err)
	assert.Equal(t, device.ID, got.ID)
}

func TestMemStore_UpsertPreservesIdentityAcrossUpdates(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	first, err := store.Upsert(ctx, "d1", applyRaw(t, `{
		"Device_ID": "d1",
		"ESP_firmware": "2.1.0",
		"Engine_status": "ON"
	}`))
	require.NoError(t, err)

	second, err := store.Upsert(ctx, "d1", applyRaw(t, `{
		"Device_ID": "d1",
		"Engine_status": "OFF"
	}`))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "2.1.0", second.Firmware)
	assert.Equal(t, telemetry.StatusOffline, second.Status)
}

func TestMemStore_FailedUpdateLeavesRecordUntouched(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	_, err := store.Upsert(ctx, "d1", applyRaw(t, `{
		"Device_ID": "d1",
		"Engine_status": "ON"
	}`))
	require.NoError(t, err)

	_, err = store.Upsert(ctx, "d1", func(*telemetry.Device) error {
		return stderrors.New("boom")
	})
	require.Error(t, err)

	got, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, telemetry.StatusOnline, got.Status)
}

func TestMemStore_GetUnknown(t *testing.T) {
	store := NewMemStore()

	_, err := store.Get(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, claserr.ErrDeviceNotFound)
	assert.True(t, claserr.IsNotFound(err))
}

func TestMemStore_ListAscendingSerialOrder(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	for _, serial := range []string{"c3", "a1", "b2"} {
		_, err := store.Upsert(ctx, serial, applyRaw(t,
			fmt.Sprintf(`{"Device_ID": %q, "Engine_status": "ON"}`, serial)))
		require.NoError(t, err)
	}

	devices, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 3)
	assert.Equal(t, "a1", devices[0].Serial)
	assert.Equal(t, "b2", devices[1].Serial)
	assert.Equal(t, "c3", devices[2].Serial)
}

func TestMemStore_Delete(t *testing.T) {
	var cascaded []string
	store := NewMemStore(WithMemCascade(func(_ context.Context, serial string) error {
		cascaded = append(cascaded, serial)
		return nil
	}))
	ctx := context.Background()

	_, err := store.Upsert(ctx, "d1", applyRaw(t, `{"Device_ID": "d1"}`))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "d1"))
	assert.Equal(t, []string{"d1"}, cascaded)

	err = store.Delete(ctx, "d1")
	assert.ErrorIs(t, err, claserr.ErrDeviceNotFound)
}

func TestMemStore_RacingUpsertsNeverMixFields(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw := fmt.Sprintf(`{
				"Device_ID": "d1",
				"ESP_firmware": "fw-%d",
				"machine_model": "model-%d",
				"Engine_status": "ON"
			}`, i, i)
			p, err := telemetry.ParsePayload([]byte(raw))
			assert.NoError(t, err)
			_, err = store.Upsert(ctx, "d1", func(d *telemetry.Device) error {
				return d.ApplyPayload(p, time.Now())
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := store.Get(ctx, "d1")
	require.NoError(t, err)

	// Whichever write won, firmware and model came from the same payload.
	assert.Equal(t,
		strings.TrimPrefix(got.Firmware, "fw-"),
		strings.TrimPrefix(got.MachineModel, "model-"))
}

func TestMemStore_CloneIsolation(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	_, err := store.Upsert(ctx, "d1", applyRaw(t, `{
		"Device_ID": "d1",
		"Engine_rpm": 1500
	}`))
	require.NoError(t, err)

	got, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	got.Parameters["Engine_rpm"] = 0.0

	again, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 1500.0, again.Parameters["Engine_rpm"])
}
