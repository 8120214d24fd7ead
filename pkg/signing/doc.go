// Package signing provisions the gateway's zome call signing credentials and
// signs zome calls with them.
//
// For every cell it calls into, the gateway generates an ed25519 key pair and
// a random capability secret, then asks the conductor to grant a capability
// assigned to that key. Credentials live in memory only, for the lifetime of
// the app connection they belong to.
package signing
