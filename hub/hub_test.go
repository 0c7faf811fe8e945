package hub

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	claserr "github.com/Hardikdarji921/esp32-datalogger/errors"
	"github.com/Hardikdarji921/esp32-datalogger/snapshot"
	"github.com/Hardikdarji921/esp32-datalogger/telemetry"
)

func newTestHub(t *testing.T, opts ...Option) (*Hub, *snapshot.Store) {
	t.Helper()
	store, err := snapshot.New(4)
	require.NoError(t, err)
	h := New(store, opts...)
	t.Cleanup(h.Close)
	return h, store
}

func snap(serial string, rpm float64) telemetry.Snapshot {
	return telemetry.Snapshot{
		Serial:     serial,
		Params:     map[string]any{"Engine_rpm": rpm},
		CapturedAt: time.Now(),
	}
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	event, err := sub.Receive(ctx)
	require.NoError(t, err)
	return event
}

func TestHub_PublishDelivers(t *testing.T) {
	h, _ := newTestHub(t)

	sub, replay, err := h.Subscribe(DeviceChannel("d1"))
	require.NoError(t, err)
	assert.Empty(t, replay)

	h.Publish(DeviceChannel("d1"), snap("d1", 1500))

	event := receive(t, sub)
	assert.Equal(t, "device_update_d1", event.Name)
	assert.Equal(t, 1500.0, event.Snapshot.Params["Engine_rpm"])
}

func TestHub_ReplayOnJoin(t *testing.T) {
	h, store := newTestHub(t)

	store.Put(snap("d1", 1500))

	_, replay, err := h.Subscribe(DeviceChannel("d1"))
	require.NoError(t, err)
	require.Len(t, replay, 1)
	assert.Equal(t, "device_update_d1", replay[0].Name)
	assert.Equal(t, 1500.0, replay[0].Snapshot.Params["Engine_rpm"])
}

func TestHub_GlobalChannelReplaysAllDevices(t *testing.T) {
	h, store := newTestHub(t)

	store.Put(snap("d1", 1500))
	store.Put(snap("d2", 900))

	_, replay, err := h.Subscribe(GlobalChannel)
	require.NoError(t, err)
	require.Len(t, replay, 2)
	for _, event := range replay {
		assert.Equal(t, EventMQTTData, event.Name)
	}
}

func TestHub_GlobalChannelEventName(t *testing.T) {
	h, _ := newTestHub(t)

	sub, _, err := h.Subscribe(GlobalChannel)
	require.NoError(t, err)

	h.Publish(GlobalChannel, snap("d1", 1500))

	event := receive(t, sub)
	assert.Equal(t, EventMQTTData, event.Name)
}

func TestHub_PublishOnlyReachesChannelSubscribers(t *testing.T) {
	h, _ := newTestHub(t)

	sub1, _, err := h.Subscribe(DeviceChannel("d1"))
	require.NoError(t, err)
	sub2, _, err := h.Subscribe(DeviceChannel("d2"))
	require.NoError(t, err)

	h.Publish(DeviceChannel("d1"), snap("d1", 1500))

	receive(t, sub1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = sub2.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHub_PerSinkFIFOOrder(t *testing.T) {
	h, _ := newTestHub(t)

	sub, _, err := h.Subscribe(DeviceChannel("d1"))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		h.Publish(DeviceChannel("d1"), snap("d1", float64(i)))
	}

	for i := 0; i < 10; i++ {
		event := receive(t, sub)
		assert.Equal(t, float64(i), event.Snapshot.Params["Engine_rpm"])
	}
}

func TestHub_SlowSinkDropsOldestNotOthers(t *testing.T) {
	h, _ := newTestHub(t, WithQueueSize(2))

	slow, _, err := h.Subscribe(DeviceChannel("d1"))
	require.NoError(t, err)
	fast, _, err := h.Subscribe(DeviceChannel("d1"))
	require.NoError(t, err)

	// The slow sink never reads; its queue holds only the 2 newest.
	for i := 0; i < 5; i++ {
		h.Publish(DeviceChannel("d1"), snap("d1", float64(i)))
		event := receive(t, fast)
		assert.Equal(t, float64(i), event.Snapshot.Params["Engine_rpm"])
	}

	event := receive(t, slow)
	assert.Equal(t, 3.0, event.Snapshot.Params["Engine_rpm"])
	event = receive(t, slow)
	assert.Equal(t, 4.0, event.Snapshot.Params["Engine_rpm"])
}

func TestHub_UnsubscribeIdempotent(t *testing.T) {
	h, _ := newTestHub(t)

	sub, _, err := h.Subscribe(DeviceChannel("d1"))
	require.NoError(t, err)
	assert.Equal(t, 1, h.SubscriberCount())

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, h.SubscriberCount())

	// Publishing after unsubscribe must not panic or deliver.
	h.Publish(DeviceChannel("d1"), snap("d1", 1500))

	_, err = sub.Receive(context.Background())
	assert.ErrorIs(t, err, claserr.ErrSinkClosed)
}

func TestHub_ReceiveDrainsQueueAfterUnsubscribe(t *testing.T) {
	h, _ := newTestHub(t)

	sub, _, err := h.Subscribe(DeviceChannel("d1"))
	require.NoError(t, err)

	h.Publish(DeviceChannel("d1"), snap("d1", 1500))
	sub.Unsubscribe()

	event, err := sub.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1500.0, event.Snapshot.Params["Engine_rpm"])

	_, err = sub.Receive(context.Background())
	assert.ErrorIs(t, err, claserr.ErrSinkClosed)
}

func TestHub_SubscribeAfterPublishSeesReplayValue(t *testing.T) {
	h, store := newTestHub(t)

	store.Put(snap("d1", 1500))
	h.Publish(DeviceChannel("d1"), snap("d1", 1500))

	_, replay, err := h.Subscribe(DeviceChannel("d1"))
	require.NoError(t, err)
	require.Len(t, replay, 1)
	assert.Equal(t, 1500.0, replay[0].Snapshot.Params["Engine_rpm"])
}

func TestHub_CloseRejectsNewSubscriptions(t *testing.T) {
	store, err := snapshot.New(4)
	require.NoError(t, err)
	h := New(store)

	sub, _, err := h.Subscribe(DeviceChannel("d1"))
	require.NoError(t, err)

	h.Close()

	_, err = sub.Receive(context.Background())
	assert.ErrorIs(t, err, claserr.ErrSinkClosed)

	_, _, err = h.Subscribe(DeviceChannel("d1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, claserr.ErrShuttingDown)
}

func TestHub_ConcurrentPublishersManySinks(t *testing.T) {
	h, _ := newTestHub(t, WithQueueSize(256))

	subs := make([]*Subscription, 8)
	for i := range subs {
		sub, _, err := h.Subscribe(DeviceChannel("d1"))
		require.NoError(t, err)
		subs[i] = sub
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			h.Publish(DeviceChannel("d1"), snap("d1", float64(i)))
		}
	}()

	<-done
	for i, sub := range subs {
		for j := 0; j < 100; j++ {
			event := receive(t, sub)
			assert.Equal(t, float64(j), event.Snapshot.Params["Engine_rpm"],
				fmt.Sprintf("sink %d event %d", i, j))
		}
	}
}
