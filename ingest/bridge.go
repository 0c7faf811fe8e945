package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
	"github.com/Hardikdarji921/esp32-datalogger/hub"
	"github.com/Hardikdarji921/esp32-datalogger/metric"
	"github.com/Hardikdarji921/esp32-datalogger/pkg/worker"
)

// Subscriber receives messages from the legacy broker subject.
type Subscriber interface {
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
}

// Bridge consumes the single legacy broker subject and feeds each
// payload through the ingestion pipeline via a worker pool, so a burst
// of broker traffic never stalls the subscription callback. Accepted
// payloads are additionally published on the global hub channel for
// legacy all-devices viewers.
type Bridge struct {
	subscriber Subscriber
	service    *Service
	fanout     *hub.Hub
	subject    string
	logger     *slog.Logger

	pool *worker.Pool[[]byte]
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithBridgeLogger sets the bridge logger.
func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBridge creates a bridge over the given subject. Workers and
// queueSize bound the concurrent pipeline runs and the backlog.
func NewBridge(subscriber Subscriber, service *Service, fanout *hub.Hub,
	subject string, workers, queueSize int, registry *metric.MetricsRegistry,
	opts ...BridgeOption) *Bridge {

	b := &Bridge{
		subscriber: subscriber,
		service:    service,
		fanout:     fanout,
		subject:    subject,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}

	var poolOpts []worker.Option[[]byte]
	if registry != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[[]byte](registry, "datalogger_bridge"))
	}
	b.pool = worker.NewPool(workers, queueSize, b.process, poolOpts...)

	return b
}

// Start launches the worker pool and subscribes to the broker subject.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.pool.Start(ctx); err != nil {
		return errors.WrapFatal(err, "Bridge", "Start", "start worker pool")
	}

	err := b.subscriber.Subscribe(ctx, b.subject, func(_ context.Context, data []byte) {
		if err := b.pool.Submit(data); err != nil {
			// Queue full or pool stopping; drop rather than block the
			// broker callback.
			b.logger.Warn("bridge dropped payload", "subject", b.subject, "error", err)
		}
	})
	if err != nil {
		return errors.WrapTransient(err, "Bridge", "Start", "subscribe to broker")
	}

	b.logger.Info("bridge started", "subject", b.subject)
	return nil
}

// Stop drains the worker pool, waiting up to timeout for in-flight
// payloads.
func (b *Bridge) Stop(timeout time.Duration) error {
	if err := b.pool.Stop(timeout); err != nil {
		return errors.WrapTransient(err, "Bridge", "Stop", "stop worker pool")
	}
	return nil
}

// process runs one broker payload through the pipeline.
func (b *Bridge) process(ctx context.Context, data []byte) error {
	result, err := b.service.Ingest(ctx, data, "bridge")
	if err != nil {
		if errors.IsInvalid(err) {
			// Malformed broker traffic is logged and dropped, exactly
			// like an HTTP 400; there is no caller to answer.
			b.logger.Warn("bridge rejected payload", "error", err)
			return nil
		}
		return err
	}

	b.fanout.Publish(hub.GlobalChannel, result.Snapshot)
	return nil
}
