package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"hchttp/gateway/pkg/config"
)

// ConductorMetrics tracks control-plane activity.
//
// Metrics:
//   - <ns>_conductor_admin_reconnects_total: admin reconnects by result
//   - <ns>_conductor_directory_refreshes_total: app listings by result
type ConductorMetrics struct {
	adminReconnects    *prometheus.CounterVec
	directoryRefreshes *prometheus.CounterVec
}

// NewConductorMetrics creates and registers conductor metrics.
func NewConductorMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ConductorMetrics {
	cm := &ConductorMetrics{
		adminReconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "conductor",
				Name:      "admin_reconnects_total",
				Help:      "Total number of admin websocket reconnects",
			},
			[]string{"result"},
		),
		directoryRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "conductor",
				Name:      "directory_refreshes_total",
				Help:      "Total number of app directory refreshes",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(cm.adminReconnects, cm.directoryRefreshes)
	return cm
}
