// Package metrics provides Prometheus metrics collection for the gateway.
//
// # Metrics Categories
//
//   - HTTP Metrics: request count and duration by route and status code
//   - Zome Call Metrics: call count by app and outcome, call duration
//   - Pool Metrics: open app connections, evictions, connect attempts,
//     provisioned signing credentials
//   - Conductor Metrics: admin reconnects, app directory refreshes
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RecordZomeCall("forum", "success", 40*time.Millisecond)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Every method is safe to call on a nil *Collector, so components can take
// an optional collector without guarding each call site.
//
// App ids come from request paths. They pass through a cardinality limiter
// and are reported as "other" once the limit is reached.
package metrics
