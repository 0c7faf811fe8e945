//go:build integration

package natsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	claserr "github.com/Hardikdarji921/esp32-datalogger/errors"
)

func newTestKVStore(t *testing.T, bucketName string) *KVStore {
	t.Helper()
	tc := NewTestClient(t, WithKV())

	bucket, err := tc.Client.CreateKeyValueBucket(context.Background(), jetstream.KeyValueConfig{
		Bucket:  bucketName,
		History: 5,
	})
	require.NoError(t, err)

	return tc.Client.NewKVStore(bucket)
}

func TestIntegration_KVStoreBasicOperations(t *testing.T) {
	kv := newTestKVStore(t, "kv-basic")
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKVKeyNotFound)
	assert.True(t, claserr.IsNotFound(err))

	rev, err := kv.Create(ctx, "AP550", []byte(`{"status":"Online"}`))
	require.NoError(t, err)
	assert.NotZero(t, rev)

	_, err = kv.Create(ctx, "AP550", []byte(`{}`))
	assert.ErrorIs(t, err, ErrKVKeyExists)

	entry, err := kv.Get(ctx, "AP550")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"Online"}`, string(entry.Value))

	newRev, err := kv.Update(ctx, "AP550", []byte(`{"status":"Offline"}`), entry.Revision)
	require.NoError(t, err)
	assert.Greater(t, newRev, entry.Revision)

	// A stale revision must be rejected.
	_, err = kv.Update(ctx, "AP550", []byte(`{"status":"stale"}`), entry.Revision)
	assert.ErrorIs(t, err, ErrKVRevisionMismatch)
	assert.True(t, IsKVConflictError(err))

	require.NoError(t, kv.Delete(ctx, "AP550"))
	_, err = kv.Get(ctx, "AP550")
	assert.ErrorIs(t, err, ErrKVKeyNotFound)
}

func TestIntegration_UpdateWithRetryCreatesMissingKey(t *testing.T) {
	kv := newTestKVStore(t, "kv-create-on-update")
	ctx := context.Background()

	err := kv.UpdateWithRetry(ctx, "AP551", func(current []byte) ([]byte, error) {
		require.Nil(t, current)
		return []byte(`{"serial":"AP551"}`), nil
	})
	require.NoError(t, err)

	entry, err := kv.Get(ctx, "AP551")
	require.NoError(t, err)
	assert.JSONEq(t, `{"serial":"AP551"}`, string(entry.Value))
}

func TestIntegration_UpdateWithRetrySerializesConcurrentWriters(t *testing.T) {
	kv := newTestKVStore(t, "kv-cas-race")
	ctx := context.Background()

	const writers = 8
	const updatesPerWriter = 5

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < updatesPerWriter; i++ {
				err := kv.UpdateWithRetry(ctx, "counter", func(current []byte) ([]byte, error) {
					state := map[string]int{}
					if current != nil {
						if err := json.Unmarshal(current, &state); err != nil {
							return nil, err
						}
					}
					state["count"]++
					state[fmt.Sprintf("writer_%d", id)]++
					return json.Marshal(state)
				})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	entry, err := kv.Get(ctx, "counter")
	require.NoError(t, err)

	state := map[string]int{}
	require.NoError(t, json.Unmarshal(entry.Value, &state))

	// Every increment survives; no lost updates under contention.
	assert.Equal(t, writers*updatesPerWriter, state["count"])
	for w := 0; w < writers; w++ {
		assert.Equal(t, updatesPerWriter, state[fmt.Sprintf("writer_%d", w)])
	}
}

func TestIntegration_UpdateWithRetryCallerErrorNotRetried(t *testing.T) {
	kv := newTestKVStore(t, "kv-caller-error")
	ctx := context.Background()

	calls := 0
	err := kv.UpdateWithRetry(ctx, "AP550", func([]byte) ([]byte, error) {
		calls++
		return nil, fmt.Errorf("corrupt record")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update function error")
	assert.Equal(t, 1, calls, "caller errors must not be retried")
}

func TestIntegration_UpdateWithRetryRejectsOversizedValue(t *testing.T) {
	kv := newTestKVStore(t, "kv-value-size")
	kv.options.MaxValueSize = 16
	ctx := context.Background()

	err := kv.UpdateWithRetry(ctx, "AP550", func([]byte) ([]byte, error) {
		return []byte(`{"padding":"this value is larger than sixteen bytes"}`), nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum")

	_, err = kv.Get(ctx, "AP550")
	assert.ErrorIs(t, err, ErrKVKeyNotFound)
}

func TestIntegration_DeleteMissingKey(t *testing.T) {
	kv := newTestKVStore(t, "kv-delete-missing")

	// JetStream KV delete on a missing key succeeds as a tombstone
	// write, so no not-found mapping is expected here.
	err := kv.Delete(context.Background(), "never-written")
	assert.NoError(t, err)
}
