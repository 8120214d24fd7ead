// Package apppool keeps authenticated app websocket connections, one per
// app, in a bounded LRU.
//
// A slot is opened on first use: the pool finds (or attaches) an app
// interface that accepts the gateway's origin, issues an authentication
// token, dials the interface and provisions signing credentials for every
// cell of the app. Opening is single-flight per app id. The port of the last
// app-agnostic interface is cached pool-wide and tried first; if dialing it
// fails the pool rediscovers the port once before giving up.
//
// Call runs a zome call against a slot and transparently replaces a slot
// whose socket has died, at most once per request.
package apppool
