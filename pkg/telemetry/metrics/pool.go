package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"hchttp/gateway/pkg/config"
)

// PoolMetrics tracks the app connection pool.
//
// Metrics:
//   - <ns>_pool_connections: open app connections
//   - <ns>_pool_evictions_total: connections evicted to make room
//   - <ns>_pool_connect_attempts_total: app websocket dials by result
//   - <ns>_pool_credentials_provisioned_total: signing credentials granted
type PoolMetrics struct {
	size            prometheus.Gauge
	evictions       prometheus.Counter
	connectAttempts *prometheus.CounterVec
	credentials     prometheus.Counter
}

// NewPoolMetrics creates and registers pool metrics.
func NewPoolMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *PoolMetrics {
	pm := &PoolMetrics{
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "pool",
			Name:      "connections",
			Help:      "Number of open app connections",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "pool",
			Name:      "evictions_total",
			Help:      "Total number of app connections evicted",
		}),
		connectAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "pool",
				Name:      "connect_attempts_total",
				Help:      "Total number of app websocket dial attempts",
			},
			[]string{"result"},
		),
		credentials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "pool",
			Name:      "credentials_provisioned_total",
			Help:      "Total number of signing credentials provisioned",
		}),
	}

	registry.MustRegister(pm.size, pm.evictions, pm.connectAttempts, pm.credentials)
	return pm
}
