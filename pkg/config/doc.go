// Package config provides configuration management for the gateway.
//
// Configuration comes from an optional YAML file, HC_GW_* environment
// variables and built-in defaults. Values are applied in this order (later
// overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from the YAML file, if one is given
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Environment Variables
//
//   - HC_GW_ADMIN_WS_URL         conductor admin websocket URL (required)
//   - HC_GW_ADDRESS, HC_GW_PORT  listen address (127.0.0.1:8090)
//   - HC_GW_PAYLOAD_LIMIT_BYTES  decoded payload limit (10240)
//   - HC_GW_MAX_APP_CONNECTIONS  app connection pool capacity (50)
//   - HC_GW_ZOME_CALL_TIMEOUT_MS zome call timeout (10000)
//   - HC_GW_ALLOWED_APP_IDS      comma separated allowlist of app ids
//   - HC_GW_ALLOWED_FNS_<app_id> "zome/fn,zome/fn" or "*" for each allowed app
//
// Unlike file values, an environment value that cannot be parsed is an error.
//
// # Singleton Pattern
//
//	if err := config.Initialize(""); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// For testing, prefer dependency injection with explicit Config instances
// rather than the global singleton.
package config
