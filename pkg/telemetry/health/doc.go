// Package health runs readiness checks against the gateway's dependencies.
//
// The only dependency registered in production is the conductor admin
// connection: /ready answers 503 while the admin websocket cannot be
// established. Liveness (/health) does not consult the checker at all.
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("conductor", link.Ping)
//	mux.Handle("GET /ready", checker.ReadinessHandler())
package health
