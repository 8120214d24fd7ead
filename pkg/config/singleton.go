package config

import (
	"sync"
	"sync/atomic"
)

var (
	current  atomic.Pointer[Config]
	initOnce sync.Once
	initErr  error
)

// Initialize loads configuration (see Load) once per process and publishes it
// for GetConfig. Later calls return the first call's error and do not reload.
func Initialize(path string) error {
	initOnce.Do(func() {
		cfg, err := Load(path)
		if err != nil {
			initErr = err
			return
		}
		current.Store(cfg)
	})
	return initErr
}

// GetConfig returns the process configuration, or nil before a successful
// Initialize or SetConfig.
func GetConfig() *Config {
	return current.Load()
}

// SetConfig replaces the process configuration.
func SetConfig(cfg *Config) {
	current.Store(cfg)
}
