package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration structure for the gateway.
// It contains the HTTP listener settings, the conductor connection, request
// limits, the app allowlist, directory refresh and telemetry settings.
type Config struct {
	// Gateway contains HTTP server configuration including listen address
	// and timeouts.
	Gateway GatewayConfig `yaml:"gateway"`

	// Conductor contains the admin websocket endpoint and connection settings.
	Conductor ConductorConfig `yaml:"conductor"`

	// Limits contains payload, pool and call timeout limits.
	Limits LimitsConfig `yaml:"limits"`

	// Apps contains the allowlist of apps and functions that may be called.
	Apps AppsConfig `yaml:"apps"`

	// Directory contains app directory refresh settings.
	Directory DirectoryConfig `yaml:"directory"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// GatewayConfig contains configuration for the HTTP server.
type GatewayConfig struct {
	// Address is the interface to listen on.
	// Default: "127.0.0.1"
	Address string `yaml:"address"`

	// Port is the TCP port to listen on.
	// Default: 8090
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It should exceed limits.zome_call_timeout.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// ListenAddress returns the host:port the server binds to.
func (g GatewayConfig) ListenAddress() string {
	return net.JoinHostPort(g.Address, strconv.Itoa(g.Port))
}

// ConductorConfig contains configuration for the conductor connections.
type ConductorConfig struct {
	// AdminWSURL is the conductor admin websocket URL, e.g. "ws://localhost:8888".
	// App websockets are dialed on the same host. Required.
	AdminWSURL string `yaml:"admin_ws_url"`

	// Origin is the Origin header presented to the conductor and the
	// allowed origin of app interfaces the gateway attaches.
	// Default: "hc-http-gw"
	Origin string `yaml:"origin"`

	// ConnectTimeout bounds websocket handshakes.
	// Default: 10s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// RequestTimeout bounds admin requests such as listing apps.
	// Default: 10s
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LimitsConfig contains request and resource limits.
type LimitsConfig struct {
	// PayloadLimitBytes is the maximum decoded size of a zome call payload.
	// Default: 10240
	PayloadLimitBytes int `yaml:"payload_limit_bytes"`

	// MaxAppConnections is the capacity of the app connection pool.
	// Default: 50
	MaxAppConnections int `yaml:"max_app_connections"`

	// ZomeCallTimeout bounds a single zome call.
	// Default: 10s
	ZomeCallTimeout time.Duration `yaml:"zome_call_timeout"`
}

// AppsConfig lists the apps and functions exposed through the gateway.
type AppsConfig struct {
	// AllowedAppIDs are the installed app ids that may be called.
	AllowedAppIDs []string `yaml:"allowed_app_ids"`

	// AllowedFns maps each allowed app id to its callable functions, each
	// written "zome/fn". A single "*" entry allows every function.
	AllowedFns map[string][]string `yaml:"allowed_fns"`
}

// DirectoryConfig contains app directory settings.
type DirectoryConfig struct {
	// RefreshSchedule is an optional cron expression for refreshing the app
	// directory in the background. Empty disables scheduled refresh; the
	// directory still refreshes on lookup misses.
	// Default: ""
	RefreshSchedule string `yaml:"refresh_schedule"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether the Prometheus endpoint is served.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "hc_http_gw"
	Namespace string `yaml:"namespace"`
}
