// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// # Middleware Chain
//
// The server wraps its mux in this order (outermost first):
//
//	handler = Recovery(RequestID(Logging(Metrics(mux))))
//
//   - RecoveryMiddleware: recover from panics, answer 500
//   - RequestIDMiddleware: assign a request ID (UUID v4), add it to the
//     logging context and the X-Request-ID response header
//   - LoggingMiddleware: log method, path, status and latency
//   - MetricsMiddleware: count requests per matched route and status
//
// # Request ID
//
//	X-Request-ID: 550e8400-e29b-41d4-a716-446655440000
//
// A client-supplied X-Request-ID is reused. Every log line written with a
// request context carries it as request_id.
package middleware
