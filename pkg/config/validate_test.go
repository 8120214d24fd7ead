package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:      "admin url scheme",
			mutate:    func(c *Config) { c.Conductor.AdminWSURL = "http://localhost:8888" },
			wantField: "conductor.admin_ws_url",
		},
		{
			name:      "admin url without port",
			mutate:    func(c *Config) { c.Conductor.AdminWSURL = "ws://localhost" },
			wantField: "conductor.admin_ws_url",
		},
		{
			name:      "port out of range",
			mutate:    func(c *Config) { c.Gateway.Port = 70000 },
			wantField: "gateway.port",
		},
		{
			name:      "payload limit",
			mutate:    func(c *Config) { c.Limits.PayloadLimitBytes = -1 },
			wantField: "limits.payload_limit_bytes",
		},
		{
			name:      "pool capacity",
			mutate:    func(c *Config) { c.Limits.MaxAppConnections = -3 },
			wantField: "limits.max_app_connections",
		},
		{
			name:      "bad allowed fns",
			mutate:    func(c *Config) { c.Apps.AllowedFns["forum"] = []string{"posts"} },
			wantField: "apps.allowed_fns.forum",
		},
		{
			name:      "duplicate app id",
			mutate:    func(c *Config) { c.Apps.AllowedAppIDs = append(c.Apps.AllowedAppIDs, "forum") },
			wantField: "apps.allowed_app_ids",
		},
		{
			name:      "cron schedule",
			mutate:    func(c *Config) { c.Directory.RefreshSchedule = "every minute" },
			wantField: "directory.refresh_schedule",
		},
		{
			name:      "log level",
			mutate:    func(c *Config) { c.Telemetry.Logging.Level = "trace" },
			wantField: "telemetry.logging.level",
		},
		{
			name: "metrics path shadows zome route",
			mutate: func(c *Config) {
				c.Telemetry.Metrics.Enabled = true
				c.Telemetry.Metrics.Path = "/a/b/c/d"
			},
			wantField: "telemetry.metrics.path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig().Build()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %q, got %v", tt.wantField, verr.Errors)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	one := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if one.Error() != "configuration validation failed: a: bad" {
		t.Errorf("unexpected message %q", one.Error())
	}

	many := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if !strings.Contains(many.Error(), "2 errors") {
		t.Errorf("unexpected message %q", many.Error())
	}
}
