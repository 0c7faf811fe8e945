package snapshot

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Hardikdarji921/esp32-datalogger/metric"
)

// storeMetrics exposes store activity as Prometheus metrics.
type storeMetrics struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	puts    prometheus.Counter
	deletes prometheus.Counter
	entries prometheus.Gauge
}

func newStoreMetrics(registry *metric.MetricsRegistry) (*storeMetrics, error) {
	m := &storeMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datalogger",
			Subsystem: "snapshot",
			Name:      "hits_total",
			Help:      "Total number of snapshot lookups that found a device",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datalogger",
			Subsystem: "snapshot",
			Name:      "misses_total",
			Help:      "Total number of snapshot lookups for unknown devices",
		}),
		puts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datalogger",
			Subsystem: "snapshot",
			Name:      "puts_total",
			Help:      "Total number of snapshot writes",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "datalogger",
			Subsystem: "snapshot",
			Name:      "deletes_total",
			Help:      "Total number of snapshot removals",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "datalogger",
			Subsystem: "snapshot",
			Name:      "entries",
			Help:      "Current number of stored snapshots",
		}),
	}

	if err := registry.RegisterCounter("snapshot", "hits", m.hits); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("snapshot", "misses", m.misses); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("snapshot", "puts", m.puts); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("snapshot", "deletes", m.deletes); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("snapshot", "entries", m.entries); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *storeMetrics) recordHit()    { m.hits.Inc() }
func (m *storeMetrics) recordMiss()   { m.misses.Inc() }
func (m *storeMetrics) recordPut()    { m.puts.Inc() }
func (m *storeMetrics) recordDelete() { m.deletes.Inc() }

func (m *storeMetrics) setEntries(n int) { m.entries.Set(float64(n)) }
