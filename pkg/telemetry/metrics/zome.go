package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"hchttp/gateway/pkg/config"
)

// ZomeMetrics tracks dispatched zome calls.
//
// Metrics:
//   - <ns>_zome_calls_total: call count by app id and outcome
//   - <ns>_zome_call_duration_seconds: call duration by app id
type ZomeMetrics struct {
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

// NewZomeMetrics creates and registers zome call metrics.
func NewZomeMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ZomeMetrics {
	zm := &ZomeMetrics{
		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "zome",
				Name:      "calls_total",
				Help:      "Total number of zome calls dispatched",
			},
			[]string{"app_id", "outcome"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "zome",
				Name:      "call_duration_seconds",
				Help:      "Duration of zome calls in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"app_id"},
		),
	}

	registry.MustRegister(zm.callsTotal, zm.callDuration)
	return zm
}

// Record records one zome call.
func (zm *ZomeMetrics) Record(appID, outcome string, duration time.Duration) {
	zm.callsTotal.WithLabelValues(appID, outcome).Inc()
	zm.callDuration.WithLabelValues(appID).Observe(duration.Seconds())
}
