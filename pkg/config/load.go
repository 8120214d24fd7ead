package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable the gateway reads.
const EnvPrefix = "HC_GW_"

// AllowedFnsEnvPrefix is the prefix of the per-app allowed functions
// variables, e.g. HC_GW_ALLOWED_FNS_forum=posts/list_posts,posts/get_post.
const AllowedFnsEnvPrefix = EnvPrefix + "ALLOWED_FNS_"

// Load loads configuration from path, or from defaults and the environment
// alone when path is empty. Environment variables always win.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromEnv()
	}
	return LoadConfigWithEnvOverrides(path)
}

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides (HC_GW_*).
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return finishEnv(cfg)
}

// LoadFromEnv builds configuration from defaults and HC_GW_* variables only.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	ApplyDefaults(&cfg)
	return finishEnv(&cfg)
}

func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

func finishEnv(cfg *Config) (*Config, error) {
	if errs := applyEnvOverrides(cfg, os.Environ()); len(errs) > 0 {
		return nil, fmt.Errorf("invalid environment: %w", ValidationError{Errors: errs})
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// environ is a list of KEY=VALUE pairs as returned by os.Environ. Values that
// cannot be parsed are reported rather than ignored.
func applyEnvOverrides(cfg *Config, environ []string) []FieldError {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}

	var errs []FieldError
	str := func(name string, dst *string) {
		if val := env[EnvPrefix+name]; val != "" {
			*dst = strings.TrimSpace(val)
		}
	}
	integer := func(name, field string, dst *int) {
		val := env[EnvPrefix+name]
		if val == "" {
			return
		}
		i, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("%s%s: invalid number %q", EnvPrefix, name, val)})
			return
		}
		*dst = i
	}
	millis := func(name, field string, dst *time.Duration) {
		var ms int
		integer(name, field, &ms)
		if ms != 0 {
			*dst = time.Duration(ms) * time.Millisecond
		}
	}
	boolean := func(name, field string, dst *bool) {
		val := env[EnvPrefix+name]
		if val == "" {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("%s%s: invalid boolean %q", EnvPrefix, name, val)})
			return
		}
		*dst = b
	}

	// Gateway overrides
	str("ADDRESS", &cfg.Gateway.Address)
	integer("PORT", "gateway.port", &cfg.Gateway.Port)

	// Conductor overrides
	str("ADMIN_WS_URL", &cfg.Conductor.AdminWSURL)
	str("ORIGIN", &cfg.Conductor.Origin)

	// Limits overrides
	integer("PAYLOAD_LIMIT_BYTES", "limits.payload_limit_bytes", &cfg.Limits.PayloadLimitBytes)
	integer("MAX_APP_CONNECTIONS", "limits.max_app_connections", &cfg.Limits.MaxAppConnections)
	millis("ZOME_CALL_TIMEOUT_MS", "limits.zome_call_timeout", &cfg.Limits.ZomeCallTimeout)

	// Apps overrides
	if val, ok := env[EnvPrefix+"ALLOWED_APP_IDS"]; ok {
		cfg.Apps.AllowedAppIDs = ParseAppIDs(val)
	}
	if cfg.Apps.AllowedFns == nil {
		cfg.Apps.AllowedFns = make(map[string][]string)
	}
	for k, v := range env {
		appID, ok := strings.CutPrefix(k, AllowedFnsEnvPrefix)
		if ok && appID != "" {
			cfg.Apps.AllowedFns[appID] = []string{v}
		}
	}

	// Directory overrides
	str("DIRECTORY_REFRESH_SCHEDULE", &cfg.Directory.RefreshSchedule)

	// Telemetry overrides
	str("LOG_LEVEL", &cfg.Telemetry.Logging.Level)
	str("LOG_FORMAT", &cfg.Telemetry.Logging.Format)
	boolean("METRICS_ENABLED", "telemetry.metrics.enabled", &cfg.Telemetry.Metrics.Enabled)
	str("METRICS_PATH", &cfg.Telemetry.Metrics.Path)

	return errs
}
