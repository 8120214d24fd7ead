// Package logging provides structured logging for the gateway.
//
// It wraps log/slog with:
//   - JSON or text output at a configurable level
//   - a context handler that adds request_id and app_id from the context
//   - redaction of credential-bearing attributes (tokens, cap secrets)
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	slog.SetDefault(logger.Slog())
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	slog.InfoContext(ctx, "zome call dispatched") // includes request_id
package logging
