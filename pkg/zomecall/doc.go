// Package zomecall validates zome call requests and dispatches them to the
// conductor.
//
// Validate turns the raw path segments and payload of an HTTP request into a
// Request, or a *gwerrors.Error describing the first problem found. The
// Dispatcher resolves the target app, checks the function allowlist, signs
// the call and runs it through the app connection pool.
package zomecall
