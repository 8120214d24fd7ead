// Package proxy contains the HTTP surface of the gateway: request
// extraction, response writing and the mapping of gateway errors to status
// codes.
//
// # Errors
//
// Every error body has the form {"error": "..."}:
//
//	400  malformed hash, identifier or payload; payload too large
//	403  app or function not allowlisted
//	404  no running app matches the target
//	405  non-GET request on a zome call path
//	500  conductor or zome error
//
// Conductor errors are reported with a generic message and logged in full.
// Zome errors carry the message raised by the zome.
//
// Handlers live in the handlers subpackage, the middleware chain in
// middleware.
package proxy
