package middleware

import (
	"net/http"
	"time"

	"hchttp/gateway/pkg/telemetry/metrics"
)

// MetricsMiddleware records the status and latency of every request. The
// route label is the matched ServeMux pattern, so path values such as hashes
// never become label values.
func MetricsMiddleware(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			collector.RecordHTTPRequest(route, rec.Status(), time.Since(start))
		})
	}
}
