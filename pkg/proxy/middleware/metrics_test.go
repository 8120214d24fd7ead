package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"hchttp/gateway/pkg/config"
	"hchttp/gateway/pkg/telemetry/metrics"
)

func TestMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "test"}, registry)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := MetricsMiddleware(collector)(mux)

	for _, path := range []string{"/items/1", "/items/2", "/nowhere/at/all"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	expected := `
# HELP test_http_requests_total Total number of HTTP requests served
# TYPE test_http_requests_total counter
test_http_requests_total{route="GET /items/{id}",status="404"} 2
test_http_requests_total{route="unmatched",status="404"} 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_http_requests_total"); err != nil {
		t.Error(err)
	}
}
