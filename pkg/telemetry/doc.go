// Package telemetry groups the gateway's observability packages.
//
//   - logging: slog-based structured logging with credential redaction and
//     request-scoped fields
//   - metrics: Prometheus collectors for HTTP, zome call, pool and conductor
//     activity
//   - health: readiness checks behind GET /ready
//
// The subpackages are independent; cmd/hc-http-gw wires them together.
package telemetry
