package config

import "time"

// Default values for configuration fields.
const (
	// Gateway defaults
	DefaultAddress         = "127.0.0.1"
	DefaultPort            = 8090
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Conductor defaults
	DefaultOrigin                  = "hc-http-gw"
	DefaultConductorConnectTimeout = 10 * time.Second
	DefaultConductorRequestTimeout = 10 * time.Second

	// Limits defaults
	DefaultPayloadLimitBytes = 10 * 1024
	DefaultMaxAppConnections = 50
	DefaultZomeCallTimeout   = 10 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "hc_http_gw"
)

// AllFunctions is the allowed_fns entry that permits every function of an app.
const AllFunctions = "*"

// ApplyDefaults applies default values to any unset configuration fields.
// It modifies the provided configuration in place.
func ApplyDefaults(cfg *Config) {
	applyGatewayDefaults(&cfg.Gateway)
	applyConductorDefaults(&cfg.Conductor)
	applyLimitsDefaults(&cfg.Limits)
	applyTelemetryDefaults(&cfg.Telemetry)

	if cfg.Apps.AllowedFns == nil {
		cfg.Apps.AllowedFns = make(map[string][]string)
	}
}

func applyGatewayDefaults(cfg *GatewayConfig) {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
}

func applyConductorDefaults(cfg *ConductorConfig) {
	if cfg.Origin == "" {
		cfg.Origin = DefaultOrigin
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConductorConnectTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultConductorRequestTimeout
	}
}

func applyLimitsDefaults(cfg *LimitsConfig) {
	if cfg.PayloadLimitBytes == 0 {
		cfg.PayloadLimitBytes = DefaultPayloadLimitBytes
	}
	if cfg.MaxAppConnections == 0 {
		cfg.MaxAppConnections = DefaultMaxAppConnections
	}
	if cfg.ZomeCallTimeout == 0 {
		cfg.ZomeCallTimeout = DefaultZomeCallTimeout
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
