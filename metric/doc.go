// Package metric provides Prometheus-based metrics collection for the
// datalogger platform.
//
// # Overview
//
// The package separates platform metrics from service-specific metrics.
// Core platform metrics (service status, ingest counters, fan-out counters,
// NATS health) are created once by NewMetricsRegistry and shared across
// services. Services register their own domain metrics through the
// MetricsRegistrar interface.
//
// The registry wraps a private prometheus.Registry rather than the global
// default so tests can create isolated registries without name collisions.
//
// # Quick Start
//
//	registry := metric.NewMetricsRegistry()
//
//	// Core metrics, shared by all services
//	core := registry.CoreMetrics()
//	core.RecordPayloadReceived("device-ingest", "http")
//
//	// Service-specific metrics
//	devices := prometheus.NewGauge(prometheus.GaugeOpts{
//	    Namespace: "datalogger",
//	    Subsystem: "registry",
//	    Name:      "devices_total",
//	    Help:      "Number of known devices",
//	})
//	if err := registry.RegisterGauge("device-registry", "devices_total", devices); err != nil {
//	    return err
//	}
//
// The metrics HTTP server exposes everything at /metrics:
//
//	server := metric.NewServer(9090, "/metrics", registry)
//	go server.Start()
//	defer server.Stop()
//
// # Conventions
//
// Metric names follow Prometheus conventions with the "datalogger" namespace
// and a subsystem per concern (ingest, fanout, nats, health). Components that
// accept a *MetricsRegistry treat nil as metrics-off and skip registration.
package metric
