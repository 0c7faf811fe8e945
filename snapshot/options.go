package snapshot

import "github.com/Hardikdarji921/esp32-datalogger/metric"

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	metricsReg *metric.MetricsRegistry
}

// WithMetrics exposes store statistics as Prometheus metrics.
// A nil registry is ignored.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(opts *storeOptions) {
		if registry != nil {
			opts.metricsReg = registry
		}
	}
}
