// Package server provides the HTTP server of the gateway.
//
// The server ties together the zome call handler, health and readiness
// checks, the metrics endpoint and the middleware chain, and manages the
// listener lifecycle.
//
// # Basic Usage
//
//	dispatcher := zomecall.NewDispatcher(resolver, pool, cfg.Limits.ZomeCallTimeout, collector)
//	srv := server.NewServer(cfg, dispatcher, checker, collector)
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Start returns when ctx is canceled, Stop is called or serving fails. In the
// first two cases the server shuts down gracefully, waiting up to
// gateway.shutdown_timeout for in-flight requests.
//
// # Routes
//
//   - GET /{dna_hash}/{app_id}/{zome}/{fn}?payload=... - zome call
//   - any other method on that path - 405
//   - GET /health - liveness, always 200 "Ok"
//   - GET /ready - readiness, JSON report of the conductor check (200/503)
//   - GET /metrics - Prometheus exposition, when telemetry.metrics.enabled
//
// # Middleware Chain
//
// Requests pass through the following middleware (outermost first):
//  1. Recovery: recovers from panics and returns 500
//  2. RequestID: assigns the request id used in logs
//  3. Logging: logs request completion
//  4. Metrics: counts requests per route pattern
package server
