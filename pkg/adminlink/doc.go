// Package adminlink owns the gateway's single connection to the conductor
// admin interface.
//
// The connection is established lazily on the first operation. When an
// operation fails because the socket died, the link drops the connection,
// dials once more and retries the operation once. Concurrent dials collapse
// into one.
//
// Every error returned by a Link operation is a *gwerrors.Error of kind
// KindConductor.
package adminlink
