package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"hchttp/gateway/pkg/proxy"
)

// RecoveryMiddleware recovers from panics in HTTP handlers and answers 500
// with a generic error body. The panic and stack are logged.
//
// Example usage:
//
//	handler = RecoveryMiddleware(handler)
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.ErrorContext(r.Context(), "panic in handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				proxy.WriteJSON(w, http.StatusInternalServerError, &proxy.ErrorResponse{Error: "internal error"})
			}
		}()

		next.ServeHTTP(w, r)
	})
}
