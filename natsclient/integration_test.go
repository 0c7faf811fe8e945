//go:build integration

package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hardikdarji921/esp32-datalogger/metric"
)

func TestIntegration_ConnectAndPublishSubscribe(t *testing.T) {
	tc := NewTestClient(t)
	client := tc.Client

	require.True(t, client.IsHealthy())
	require.Equal(t, StatusConnected, client.Status())

	received := make(chan []byte, 1)
	ctx := context.Background()

	require.NoError(t, client.Subscribe(ctx, "telemetry.ap550", func(_ context.Context, data []byte) {
		received <- data
	}))

	require.NoError(t, client.Publish(ctx, "telemetry.ap550", []byte(`{"Device_ID":"AP550"}`)))

	select {
	case data := <-received:
		assert.JSONEq(t, `{"Device_ID":"AP550"}`, string(data))
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestIntegration_KVBucketLifecycle(t *testing.T) {
	tc := NewTestClient(t, WithKV())
	client := tc.Client
	ctx := context.Background()

	bucket, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket: "lifecycle-test",
	})
	require.NoError(t, err)

	// Creating again returns the existing bucket instead of failing.
	again, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket: "lifecycle-test",
	})
	require.NoError(t, err)
	require.NotNil(t, again)

	_, err = bucket.Put(ctx, "AP550", []byte(`{"serial":"AP550"}`))
	require.NoError(t, err)

	entry, err := bucket.Get(ctx, "AP550")
	require.NoError(t, err)
	assert.JSONEq(t, `{"serial":"AP550"}`, string(entry.Value()))

	got, err := client.GetKeyValueBucket(ctx, "lifecycle-test")
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, client.DeleteKeyValueBucket(ctx, "lifecycle-test"))

	_, err = client.GetKeyValueBucket(ctx, "lifecycle-test")
	assert.Error(t, err)
}

func TestIntegration_ObjectStoreRoundTrip(t *testing.T) {
	tc := NewTestClient(t)
	client := tc.Client
	ctx := context.Background()

	store, err := client.CreateObjectStoreBucket(ctx, jetstream.ObjectStoreConfig{
		Bucket: "device-logs",
	})
	require.NoError(t, err)

	content := []byte("time,engine_rpm\n2026-08-28T10:00:00Z,1800\n")
	_, err = store.PutBytes(ctx, "AP550/2026-08-28.csv", content)
	require.NoError(t, err)

	got, err := store.GetBytes(ctx, "AP550/2026-08-28.csv")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// Creating again returns the existing bucket with its contents.
	again, err := client.CreateObjectStoreBucket(ctx, jetstream.ObjectStoreConfig{
		Bucket: "device-logs",
	})
	require.NoError(t, err)

	got, err = again.GetBytes(ctx, "AP550/2026-08-28.csv")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestIntegration_ConnectionMetrics(t *testing.T) {
	tc := NewTestClient(t)

	registry := metric.NewMetricsRegistry()
	client, err := NewClient(tc.URL,
		WithMetrics(registry),
		WithMaxReconnects(0),
		WithHealthInterval(0),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	require.NoError(t, client.Connect(context.Background()))

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, fam := range families {
		byName[fam.GetName()] = fam
	}

	connected, ok := byName["datalogger_nats_connected"]
	require.True(t, ok, "connection gauge not registered")
	require.NotEmpty(t, connected.GetMetric())
	assert.Equal(t, float64(1), connected.GetMetric()[0].GetGauge().GetValue())

	breaker, ok := byName["datalogger_nats_circuit_breaker"]
	require.True(t, ok, "circuit breaker gauge not registered")
	assert.Equal(t, float64(0), breaker.GetMetric()[0].GetGauge().GetValue())
}
