// Package health provides health status reporting for services and
// long-running components.
//
// A Status carries a component name, a state ("healthy", "degraded",
// "unhealthy"), a human-readable message, and optional metrics and
// sub-statuses. Services publish their Status into a shared Monitor,
// and the HTTP health endpoint aggregates them into a single system
// view with Aggregate.
//
// Error messages placed into a Status are sanitized before exposure:
// URLs, filesystem paths, IP addresses, ports, and credential-looking
// fragments are replaced with placeholders so that internal topology
// never leaks through the health endpoint. Use FromError to build a
// Status directly from an operation error with sanitization applied.
//
// Typical usage:
//
//	monitor := health.NewMonitor()
//	monitor.UpdateHealthy("device-ingest", "Service healthy")
//
//	if err := svc.ping(ctx); err != nil {
//		monitor.Update(health.FromError("device-ingest", err))
//	}
//
//	overall := monitor.AggregateHealth()
package health
