// Package handlers provides the gateway's HTTP handlers.
//
//   - ZomeCallHandler: GET /{dna_hash}/{app_id}/{zome}/{fn}?payload=...
//   - HealthHandler: GET /health, always 200 "Ok"
//
// The zome call handler follows a fixed flow:
//
//  1. Extract the path segments and payload query parameter
//  2. Validate them against the payload limit
//  3. Dispatch the call and write the JSON result, or the error response
package handlers
