package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"hchttp/gateway/pkg/config"
)

// maxAppLabels bounds the number of distinct app_id label values.
const maxAppLabels = 1000

// Collector is the main orchestrator for all Prometheus metrics of the gateway.
// It manages metric registration and provides a unified interface for
// recording metrics across all components.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	httpMetrics      *HTTPMetrics
	zomeMetrics      *ZomeMetrics
	poolMetrics      *PoolMetrics
	conductorMetrics *ConductorMetrics

	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		httpMetrics:        NewHTTPMetrics(cfg, registry),
		zomeMetrics:        NewZomeMetrics(cfg, registry),
		poolMetrics:        NewPoolMetrics(cfg, registry),
		conductorMetrics:   NewConductorMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(maxAppLabels),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordHTTPRequest records a completed HTTP request.
//
// Parameters:
//   - route: matched route pattern (e.g., "zome_call", "health")
//   - status: HTTP status code
//   - duration: time spent serving the request
func (c *Collector) RecordHTTPRequest(route string, status int, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.httpMetrics.Record(route, status, duration)
}

// RecordZomeCall records a dispatched zome call.
//
// Parameters:
//   - appID: installed app id from the request path
//   - outcome: "success" or an error kind such as "zome_error"
//   - duration: time from resolution to result
func (c *Collector) RecordZomeCall(appID, outcome string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	if !c.cardinalityLimiter.Allow(appID) {
		appID = "other"
	}
	c.zomeMetrics.Record(appID, outcome, duration)
}

// SetPoolSize updates the number of open app connections.
func (c *Collector) SetPoolSize(n int) {
	if !c.enabled() {
		return
	}
	c.poolMetrics.size.Set(float64(n))
}

// RecordPoolEviction records an app connection evicted to make room.
func (c *Collector) RecordPoolEviction() {
	if !c.enabled() {
		return
	}
	c.poolMetrics.evictions.Inc()
}

// RecordPoolConnect records an app websocket dial attempt.
// Result is "success" or "failure".
func (c *Collector) RecordPoolConnect(result string) {
	if !c.enabled() {
		return
	}
	c.poolMetrics.connectAttempts.WithLabelValues(result).Inc()
}

// RecordCredentialsProvisioned records signing credentials granted on cells.
func (c *Collector) RecordCredentialsProvisioned(n int) {
	if !c.enabled() {
		return
	}
	c.poolMetrics.credentials.Add(float64(n))
}

// RecordAdminReconnect records an admin websocket reconnect.
// Result is "success" or "failure".
func (c *Collector) RecordAdminReconnect(result string) {
	if !c.enabled() {
		return
	}
	c.conductorMetrics.adminReconnects.WithLabelValues(result).Inc()
}

// RecordDirectoryRefresh records an app directory refresh.
// Result is "success" or "failure".
func (c *Collector) RecordDirectoryRefresh(result string) {
	if !c.enabled() {
		return
	}
	c.conductorMetrics.directoryRefreshes.WithLabelValues(result).Inc()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Result converts an error into the "success"/"failure" label value.
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label value is allowed. Returns true if the value
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(label string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[label]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[label]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[label] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
