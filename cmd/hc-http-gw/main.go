// hc-http-gw is an HTTP gateway in front of a Holochain conductor.
//
// It exposes allowlisted zome functions of installed apps as plain GET
// endpoints:
//
//	GET /{dna_hash}/{app_id}/{zome}/{fn}?payload={base64url json}
//
// Usage:
//
//	# Start with configuration from HC_GW_* environment variables
//	hc-http-gw run
//
//	# Start with a configuration file, overriding the listen port
//	hc-http-gw run --config /etc/hc-http-gw/config.yaml --port 8091
//
//	# Check a configuration without starting
//	hc-http-gw config validate --config config.yaml
//
//	# Show version information
//	hc-http-gw version
package main

func main() {
	Execute()
}
