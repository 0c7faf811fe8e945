package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
	"github.com/Hardikdarji921/esp32-datalogger/hub"
	"github.com/Hardikdarji921/esp32-datalogger/metric"
	"github.com/Hardikdarji921/esp32-datalogger/registry"
	"github.com/Hardikdarji921/esp32-datalogger/snapshot"
	"github.com/Hardikdarji921/esp32-datalogger/telemetry"
)

// Broker publishes mirrored telemetry onto the message bus.
type Broker interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Result reports what an accepted ingestion wrote.
type Result struct {
	Device   telemetry.Device
	Snapshot telemetry.Snapshot
}

// Service runs the ingestion pipeline. Failures before the durable
// write leave no state behind; the snapshot store and hub are only
// touched after the registry upsert succeeds.
type Service struct {
	registry  registry.Store
	snapshots *snapshot.Store
	fanout    *hub.Hub

	logger       *slog.Logger
	broker       Broker
	mirrorPrefix string

	serviceName string
	coreMetrics *metric.Metrics
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMirror publishes each accepted snapshot to
// <subjectPrefix>.<serial> on the broker, best effort.
func WithMirror(broker Broker, subjectPrefix string) Option {
	return func(s *Service) {
		if broker != nil && subjectPrefix != "" {
			s.broker = broker
			s.mirrorPrefix = subjectPrefix
		}
	}
}

// WithMetrics records ingestion counters and durations.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Service) {
		if registry != nil {
			s.coreMetrics = registry.CoreMetrics()
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates an ingestion service over its collaborators.
func NewService(reg registry.Store, snapshots *snapshot.Store, fanout *hub.Hub, opts ...Option) *Service {
	s := &Service{
		registry:    reg,
		snapshots:   snapshots,
		fanout:      fanout,
		logger:      slog.Default(),
		serviceName: "ingest",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest validates and applies one raw telemetry document. The source
// label distinguishes the HTTP endpoint from the broker bridge in logs
// and metrics.
func (s *Service) Ingest(ctx context.Context, raw []byte, source string) (Result, error) {
	start := s.now()
	if s.coreMetrics != nil {
		s.coreMetrics.RecordPayloadReceived(s.serviceName, source)
	}

	payload, err := telemetry.ParsePayload(raw)
	if err != nil {
		s.recordOutcome(source, "rejected")
		return Result{}, err
	}
	serial := payload.DeviceID()

	now := s.now()
	device, err := s.registry.Upsert(ctx, serial, func(d *telemetry.Device) error {
		return d.ApplyPayload(payload, now)
	})
	if err != nil {
		outcome := "failed"
		if errors.IsInvalid(err) {
			outcome = "rejected"
		}
		s.recordOutcome(source, outcome)
		s.logger.Warn("ingest upsert failed",
			"serial", serial, "source", source, "error", err)
		return Result{}, err
	}

	// Write-through: the cache and fan-out only ever see durably
	// stored payloads.
	snap := telemetry.NewSnapshot(serial, payload, now)
	s.snapshots.Put(snap)
	s.fanout.Publish(hub.DeviceChannel(serial), snap)

	s.mirror(ctx, serial, snap)

	s.recordOutcome(source, "accepted")
	if s.coreMetrics != nil {
		s.coreMetrics.RecordProcessingDuration(s.serviceName, "ingest", s.now().Sub(start))
	}
	s.logger.Debug("ingested telemetry",
		"serial", serial, "status", device.Status, "source", source)

	return Result{Device: device, Snapshot: snap}, nil
}

// mirror republishes the snapshot onto the bus for off-box consumers.
// Mirror failures never fail the ingestion.
func (s *Service) mirror(ctx context.Context, serial string, snap telemetry.Snapshot) {
	if s.broker == nil {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn("mirror marshal failed", "serial", serial, "error", err)
		return
	}
	if err := s.broker.Publish(ctx, s.mirrorPrefix+"."+serial, data); err != nil {
		s.logger.Warn("mirror publish failed", "serial", serial, "error", err)
	}
}

func (s *Service) recordOutcome(source, outcome string) {
	if s.coreMetrics != nil {
		s.coreMetrics.RecordPayloadIngested(s.serviceName, source, outcome)
	}
}
