package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
gateway:
  address: "0.0.0.0"
  port: 9090
  read_timeout: "60s"

conductor:
  admin_ws_url: "ws://localhost:8888"

limits:
  payload_limit_bytes: 2048
  zome_call_timeout: "5s"

apps:
  allowed_app_ids: ["forum"]
  allowed_fns:
    forum: ["posts/list_posts", "posts/get_post"]

directory:
  refresh_schedule: "*/5 * * * *"

telemetry:
  logging:
    level: "debug"
    format: "text"
  metrics:
    enabled: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Gateway.ListenAddress() != "0.0.0.0:9090" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:9090", cfg.Gateway.ListenAddress())
	}
	if cfg.Gateway.ReadTimeout != 60*time.Second {
		t.Errorf("expected read timeout 60s, got %v", cfg.Gateway.ReadTimeout)
	}
	if cfg.Limits.PayloadLimitBytes != 2048 {
		t.Errorf("expected payload limit 2048, got %d", cfg.Limits.PayloadLimitBytes)
	}
	if cfg.Limits.MaxAppConnections != DefaultMaxAppConnections {
		t.Errorf("expected default max app connections, got %d", cfg.Limits.MaxAppConnections)
	}
	if cfg.Conductor.Origin != DefaultOrigin {
		t.Errorf("expected default origin, got %q", cfg.Conductor.Origin)
	}
	if got := cfg.Apps.AllowedFns["forum"]; len(got) != 2 {
		t.Errorf("expected 2 allowed fns for forum, got %v", got)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist in chain, got %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "gateway: [unclosed")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
apps:
  allowed_app_ids: ["forum"]
`)
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	fields := make(map[string]bool)
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	if !fields["conductor.admin_ws_url"] {
		t.Error("expected admin_ws_url error")
	}
	if !fields["apps.allowed_fns.forum"] {
		t.Error("expected allowed_fns error for forum")
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
conductor:
  admin_ws_url: "ws://localhost:8888"
limits:
  payload_limit_bytes: 2048
`)
	t.Setenv("HC_GW_PAYLOAD_LIMIT_BYTES", "4096")
	t.Setenv("HC_GW_ALLOWED_APP_IDS", "forum")
	t.Setenv("HC_GW_ALLOWED_FNS_forum", "*")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Limits.PayloadLimitBytes != 4096 {
		t.Errorf("expected env to override payload limit, got %d", cfg.Limits.PayloadLimitBytes)
	}
	if len(cfg.Apps.AllowedAppIDs) != 1 || cfg.Apps.AllowedAppIDs[0] != "forum" {
		t.Errorf("unexpected allowed app ids %v", cfg.Apps.AllowedAppIDs)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HC_GW_ADMIN_WS_URL", "ws://127.0.0.1:4444")
	t.Setenv("HC_GW_ADDRESS", "0.0.0.0")
	t.Setenv("HC_GW_PORT", "8123")
	t.Setenv("HC_GW_ZOME_CALL_TIMEOUT_MS", "2500")
	t.Setenv("HC_GW_MAX_APP_CONNECTIONS", "5")
	t.Setenv("HC_GW_ALLOWED_APP_IDS", "forum,wiki")
	t.Setenv("HC_GW_ALLOWED_FNS_forum", "posts/list_posts,posts/get_post")
	t.Setenv("HC_GW_ALLOWED_FNS_wiki", "*")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Conductor.AdminWSURL != "ws://127.0.0.1:4444" {
		t.Errorf("unexpected admin url %q", cfg.Conductor.AdminWSURL)
	}
	if cfg.Gateway.ListenAddress() != "0.0.0.0:8123" {
		t.Errorf("unexpected listen address %q", cfg.Gateway.ListenAddress())
	}
	if cfg.Limits.ZomeCallTimeout != 2500*time.Millisecond {
		t.Errorf("unexpected zome call timeout %v", cfg.Limits.ZomeCallTimeout)
	}
	if cfg.Limits.MaxAppConnections != 5 {
		t.Errorf("unexpected max app connections %d", cfg.Limits.MaxAppConnections)
	}

	allow, err := NewAllowList(cfg.Apps)
	if err != nil {
		t.Fatalf("NewAllowList() error = %v", err)
	}
	if !allow.IsFunctionAllowed("forum", "posts", "get_post") {
		t.Error("forum posts/get_post should be allowed")
	}
	if !allow.IsFunctionAllowed("wiki", "any", "thing") {
		t.Error("wiki should allow every function")
	}
}

func TestApplyEnvOverrides_InvalidNumbers(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		field string
	}{
		{"payload limit", "HC_GW_PAYLOAD_LIMIT_BYTES=ten", "limits.payload_limit_bytes"},
		{"max connections", "HC_GW_MAX_APP_CONNECTIONS=-x", "limits.max_app_connections"},
		{"zome call timeout", "HC_GW_ZOME_CALL_TIMEOUT_MS=1s", "limits.zome_call_timeout"},
		{"port", "HC_GW_PORT=http", "gateway.port"},
		{"metrics enabled", "HC_GW_METRICS_ENABLED=maybe", "telemetry.metrics.enabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			ApplyDefaults(&cfg)
			errs := applyEnvOverrides(&cfg, []string{tt.env})
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %v", errs)
			}
			if errs[0].Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, errs[0].Field)
			}
		})
	}
}

func TestApplyEnvOverrides_IgnoresOtherVariables(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	errs := applyEnvOverrides(&cfg, []string{"PATH=/usr/bin", "HOME=/root", "GW_PORT=1"})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if cfg.Gateway.Port != DefaultPort {
		t.Errorf("port changed to %d", cfg.Gateway.Port)
	}
}

func TestLoadFromEnv_InvalidEnvironmentReported(t *testing.T) {
	t.Setenv("HC_GW_ADMIN_WS_URL", "ws://127.0.0.1:4444")
	t.Setenv("HC_GW_PAYLOAD_LIMIT_BYTES", "lots")

	_, err := LoadFromEnv()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "HC_GW_PAYLOAD_LIMIT_BYTES") {
		t.Errorf("error should name the variable: %v", err)
	}
}
