// Package directory tracks which running apps own which DNAs and resolves
// zome call targets against that view.
//
// The Directory holds an immutable Snapshot behind an atomic pointer.
// Refreshes replace the whole snapshot and are single-flight. The Resolver
// refreshes once on a lookup miss, then applies the app allowlist. A
// Refresher optionally refreshes on a cron schedule.
package directory
