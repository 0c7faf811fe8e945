package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	healthy := NewHealthy("bridge", "running")
	assert.Equal(t, StateHealthy, healthy.Status)
	assert.True(t, healthy.Healthy)
	assert.True(t, healthy.IsHealthy())

	unhealthy := NewUnhealthy("nats", "connection lost")
	assert.Equal(t, StateUnhealthy, unhealthy.Status)
	assert.False(t, unhealthy.Healthy)
	assert.True(t, unhealthy.IsUnhealthy())

	degraded := NewDegraded("nats", "reconnecting")
	assert.Equal(t, StateDegraded, degraded.Status)
	assert.False(t, degraded.Healthy)
	assert.True(t, degraded.IsDegraded())
}

func TestAggregateEmpty(t *testing.T) {
	agg := Aggregate("dataloggerd", nil)
	assert.True(t, agg.IsHealthy())
	assert.Empty(t, agg.SubStatuses)
}

func TestAggregatePrecedence(t *testing.T) {
	healthy := NewHealthy("http", "")
	degraded := NewDegraded("nats", "")
	unhealthy := NewUnhealthy("bridge", "")

	cases := []struct {
		name  string
		subs  []Status
		check func(Status) bool
	}{
		{"all healthy", []Status{healthy, healthy}, Status.IsHealthy},
		{"degraded beats healthy", []Status{healthy, degraded}, Status.IsDegraded},
		{"unhealthy beats degraded", []Status{healthy, degraded, unhealthy}, Status.IsUnhealthy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			agg := Aggregate("dataloggerd", tc.subs)
			assert.True(t, tc.check(agg))
			assert.Len(t, agg.SubStatuses, len(tc.subs))
		})
	}
}

func TestAggregateCopiesSubStatuses(t *testing.T) {
	subs := []Status{NewHealthy("http", "")}
	agg := Aggregate("dataloggerd", subs)

	subs[0].Status = StateUnhealthy
	require.Len(t, agg.SubStatuses, 1)
	assert.Equal(t, StateHealthy, agg.SubStatuses[0].Status)
}
