package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "limits.payload_limit_bytes").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateGateway(&cfg.Gateway)...)
	errs = append(errs, validateConductor(&cfg.Conductor)...)
	errs = append(errs, validateLimits(&cfg.Limits)...)
	errs = append(errs, validateApps(&cfg.Apps)...)
	errs = append(errs, validateDirectory(&cfg.Directory)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateGateway(cfg *GatewayConfig) []FieldError {
	var errs []FieldError

	if cfg.Address == "" {
		errs = append(errs, FieldError{
			Field:   "gateway.address",
			Message: "listen address is required",
		})
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		errs = append(errs, FieldError{
			Field:   "gateway.port",
			Message: fmt.Sprintf("port %d out of range 1-65535", cfg.Port),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "gateway.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "gateway.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "gateway.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "gateway.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}

	return errs
}

func validateConductor(cfg *ConductorConfig) []FieldError {
	var errs []FieldError

	if cfg.AdminWSURL == "" {
		errs = append(errs, FieldError{
			Field:   "conductor.admin_ws_url",
			Message: "admin websocket URL is required (HC_GW_ADMIN_WS_URL)",
		})
	} else if u, err := url.Parse(cfg.AdminWSURL); err != nil {
		errs = append(errs, FieldError{
			Field:   "conductor.admin_ws_url",
			Message: fmt.Sprintf("invalid URL: %v", err),
		})
	} else {
		if u.Scheme != "ws" && u.Scheme != "wss" {
			errs = append(errs, FieldError{
				Field:   "conductor.admin_ws_url",
				Message: fmt.Sprintf("scheme must be ws or wss, got %q", u.Scheme),
			})
		}
		if u.Hostname() == "" || u.Port() == "" {
			errs = append(errs, FieldError{
				Field:   "conductor.admin_ws_url",
				Message: "URL must include host and port",
			})
		}
	}

	if cfg.Origin == "" {
		errs = append(errs, FieldError{
			Field:   "conductor.origin",
			Message: "origin is required",
		})
	}
	if cfg.ConnectTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "conductor.connect_timeout",
			Message: "connect timeout must be positive",
		})
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "conductor.request_timeout",
			Message: "request timeout must be positive",
		})
	}

	return errs
}

func validateLimits(cfg *LimitsConfig) []FieldError {
	var errs []FieldError

	if cfg.PayloadLimitBytes <= 0 {
		errs = append(errs, FieldError{
			Field:   "limits.payload_limit_bytes",
			Message: "payload limit must be positive",
		})
	}
	if cfg.MaxAppConnections <= 0 {
		errs = append(errs, FieldError{
			Field:   "limits.max_app_connections",
			Message: "max app connections must be positive",
		})
	}
	if cfg.ZomeCallTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "limits.zome_call_timeout",
			Message: "zome call timeout must be positive",
		})
	}

	return errs
}

func validateApps(cfg *AppsConfig) []FieldError {
	var errs []FieldError

	seen := make(map[string]bool, len(cfg.AllowedAppIDs))
	for _, id := range cfg.AllowedAppIDs {
		field := fmt.Sprintf("apps.allowed_fns.%s", id)
		if strings.TrimSpace(id) == "" {
			errs = append(errs, FieldError{Field: "apps.allowed_app_ids", Message: "app id must not be empty"})
			continue
		}
		if seen[id] {
			errs = append(errs, FieldError{Field: "apps.allowed_app_ids", Message: fmt.Sprintf("duplicate app id %q", id)})
			continue
		}
		seen[id] = true

		entries, ok := cfg.AllowedFns[id]
		if !ok {
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("%s is not present in allowed_fns (set %s%s)", id, AllowedFnsEnvPrefix, id),
			})
			continue
		}
		if _, err := ParseAllowedFns(entries); err != nil {
			errs = append(errs, FieldError{Field: field, Message: err.Error()})
		}
	}

	return errs
}

func validateDirectory(cfg *DirectoryConfig) []FieldError {
	if cfg.RefreshSchedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(cfg.RefreshSchedule); err != nil {
		return []FieldError{{
			Field:   "directory.refresh_schedule",
			Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.RefreshSchedule, err),
		}}
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Path == "" || cfg.Metrics.Path[0] != '/' {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must start with /",
			})
		} else if strings.Count(strings.Trim(cfg.Metrics.Path, "/"), "/") >= 3 {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must not have four segments; it would shadow zome call routes",
			})
		}
	}

	return errs
}
