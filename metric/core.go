package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not device-specific)
type Metrics struct {
	// Service metrics
	ServiceStatus      *prometheus.GaugeVec
	PayloadsReceived   *prometheus.CounterVec
	PayloadsIngested   *prometheus.CounterVec
	UpdatesPublished   *prometheus.CounterVec
	UpdatesDropped     *prometheus.CounterVec
	SubscribersActive  *prometheus.GaugeVec
	ProcessingDuration *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec
	HealthCheckStatus  *prometheus.GaugeVec

	// NATS metrics
	NATSConnected      prometheus.Gauge
	NATSRTT            prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "datalogger",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),

		PayloadsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datalogger",
				Subsystem: "ingest",
				Name:      "payloads_received_total",
				Help:      "Total number of telemetry payloads received",
			},
			[]string{"service", "source"},
		),

		PayloadsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datalogger",
				Subsystem: "ingest",
				Name:      "payloads_ingested_total",
				Help:      "Total number of telemetry payloads ingested",
			},
			[]string{"service", "source", "status"},
		),

		UpdatesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datalogger",
				Subsystem: "fanout",
				Name:      "updates_published_total",
				Help:      "Total number of device updates published to subscribers",
			},
			[]string{"service", "channel"},
		),

		UpdatesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datalogger",
				Subsystem: "fanout",
				Name:      "updates_dropped_total",
				Help:      "Total number of device updates dropped for slow subscribers",
			},
			[]string{"service", "channel"},
		),

		SubscribersActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "datalogger",
				Subsystem: "fanout",
				Name:      "subscribers_active",
				Help:      "Current number of active subscribers",
			},
			[]string{"service"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "datalogger",
				Subsystem: "processing",
				Name:      "duration_seconds",
				Help:      "Payload processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "datalogger",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"service", "type"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "datalogger",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"service"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "datalogger",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "datalogger",
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "datalogger",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		NATSCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "datalogger",
				Subsystem: "nats",
				Name:      "circuit_breaker",
				Help:      "NATS circuit breaker status (0=closed, 1=open, 2=half-open)",
			},
		),
	}
}

// RecordServiceStatus updates service status metric
func (c *Metrics) RecordServiceStatus(service string, status int) {
	c.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordPayloadReceived increments received payload counter
func (c *Metrics) RecordPayloadReceived(service, source string) {
	c.PayloadsReceived.WithLabelValues(service, source).Inc()
}

// RecordPayloadIngested increments ingested payload counter
func (c *Metrics) RecordPayloadIngested(service, source, status string) {
	c.PayloadsIngested.WithLabelValues(service, source, status).Inc()
}

// RecordUpdatePublished increments published update counter
func (c *Metrics) RecordUpdatePublished(service, channel string) {
	c.UpdatesPublished.WithLabelValues(service, channel).Inc()
}

// RecordUpdateDropped increments dropped update counter
func (c *Metrics) RecordUpdateDropped(service, channel string) {
	c.UpdatesDropped.WithLabelValues(service, channel).Inc()
}

// RecordSubscribers updates the active subscriber gauge
func (c *Metrics) RecordSubscribers(service string, count int) {
	c.SubscribersActive.WithLabelValues(service).Set(float64(count))
}

// RecordProcessingDuration records processing time
func (c *Metrics) RecordProcessingDuration(service, operation string, duration time.Duration) {
	c.ProcessingDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordError increments error counter
func (c *Metrics) RecordError(service, errorType string) {
	c.ErrorsTotal.WithLabelValues(service, errorType).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(service string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(service).Set(value)
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSRTT updates NATS round-trip time
func (c *Metrics) RecordNATSRTT(rtt time.Duration) {
	c.NATSRTT.Set(float64(rtt.Milliseconds()))
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status
func (c *Metrics) RecordCircuitBreakerState(state int) {
	c.NATSCircuitBreaker.Set(float64(state))
}
