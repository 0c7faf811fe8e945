package logfiles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
)

func TestCreateFolderAndList(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	trip, err := store.CreateFolder(ctx, "AP550", "2025-06-01")
	require.NoError(t, err)
	assert.NotEmpty(t, trip.ID)
	assert.Equal(t, "2025-06-01", trip.Name)
	assert.Equal(t, "AP550", trip.DeviceSerial)

	_, err = store.CreateFolder(ctx, "AP550", "2025-06-02")
	require.NoError(t, err)
	_, err = store.CreateFolder(ctx, "AP551", "other-device")
	require.NoError(t, err)

	summaries, err := store.Folders(ctx, "AP550")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	for _, summary := range summaries {
		assert.Zero(t, summary.FileCount)
	}

	// Listings come back ordered by folder id.
	assert.Less(t, summaries[0].ID, summaries[1].ID)
}

func TestCreateFolderRequiresSerialAndName(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	_, err := store.CreateFolder(ctx, "", "2025-06-01")
	assert.True(t, errors.IsInvalid(err))

	_, err = store.CreateFolder(ctx, "AP550", "")
	assert.True(t, errors.IsInvalid(err))
}

func TestAddAndListFiles(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	trip, err := store.CreateFolder(ctx, "AP550", "2025-06-01")
	require.NoError(t, err)

	first, err := store.AddFile(ctx, trip.ID, "engine.csv", "1024", "2025-06-01 10:00:00")
	require.NoError(t, err)
	assert.Equal(t, trip.ID, first.FolderID)

	_, err = store.AddFile(ctx, trip.ID, "gps.csv", "2048", "2025-06-01 10:05:00")
	require.NoError(t, err)

	files, err := store.Files(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Less(t, files[0].ID, files[1].ID)

	summaries, err := store.Folders(ctx, "AP550")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].FileCount)
}

func TestFileOperationsUnknownFolder(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	_, err := store.AddFile(ctx, "no-such-folder", "engine.csv", "1024", "2025-06-01 10:00:00")
	assert.True(t, errors.IsNotFound(err))

	_, err = store.Files(ctx, "no-such-folder")
	assert.True(t, errors.IsNotFound(err))

	err = store.DeleteFolder(ctx, "no-such-folder")
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteFolderCascadesFiles(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	trip, err := store.CreateFolder(ctx, "AP550", "2025-06-01")
	require.NoError(t, err)
	keep, err := store.CreateFolder(ctx, "AP550", "2025-06-02")
	require.NoError(t, err)

	_, err = store.AddFile(ctx, trip.ID, "engine.csv", "1024", "2025-06-01 10:00:00")
	require.NoError(t, err)
	kept, err := store.AddFile(ctx, keep.ID, "gps.csv", "2048", "2025-06-02 09:00:00")
	require.NoError(t, err)

	require.NoError(t, store.DeleteFolder(ctx, trip.ID))

	_, err = store.Files(ctx, trip.ID)
	assert.True(t, errors.IsNotFound(err))

	files, err := store.Files(ctx, keep.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, kept.ID, files[0].ID)
}

func TestDeleteByDevice(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	gone, err := store.CreateFolder(ctx, "AP550", "2025-06-01")
	require.NoError(t, err)
	_, err = store.AddFile(ctx, gone.ID, "engine.csv", "1024", "2025-06-01 10:00:00")
	require.NoError(t, err)
	stays, err := store.CreateFolder(ctx, "AP551", "2025-06-01")
	require.NoError(t, err)

	require.NoError(t, store.DeleteByDevice(ctx, "AP550"))

	summaries, err := store.Folders(ctx, "AP550")
	require.NoError(t, err)
	assert.Empty(t, summaries)

	other, err := store.Folders(ctx, "AP551")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, stays.ID, other[0].ID)
}

func TestDeleteByDeviceNoLogsIsNoop(t *testing.T) {
	store := NewMemStore()
	assert.NoError(t, store.DeleteByDevice(context.Background(), "never-seen"))
}

func TestNewKVStoreNilClient(t *testing.T) {
	store, err := NewKVStore(nil, "logs")
	require.Error(t, err)
	assert.Nil(t, store)
	assert.True(t, errors.IsInvalid(err))
}
