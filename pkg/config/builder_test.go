package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder with sensible defaults for testing.
// The resulting configuration is valid and can be used immediately.
func NewTestConfig() *ConfigBuilder {
	cfg := Config{
		Conductor: ConductorConfig{AdminWSURL: "ws://127.0.0.1:8888"},
		Apps: AppsConfig{
			AllowedAppIDs: []string{"forum"},
			AllowedFns:    map[string][]string{"forum": {"posts/list_posts"}},
		},
	}
	ApplyDefaults(&cfg)
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithAdminURL sets the conductor admin websocket URL.
func (b *ConfigBuilder) WithAdminURL(u string) *ConfigBuilder {
	b.cfg.Conductor.AdminWSURL = u
	return b
}

// WithApp adds an allowed app with its allowed functions.
func (b *ConfigBuilder) WithApp(appID string, fns ...string) *ConfigBuilder {
	b.cfg.Apps.AllowedAppIDs = append(b.cfg.Apps.AllowedAppIDs, appID)
	b.cfg.Apps.AllowedFns[appID] = fns
	return b
}

// WithZomeCallTimeout sets the zome call timeout.
func (b *ConfigBuilder) WithZomeCallTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.Limits.ZomeCallTimeout = d
	return b
}
