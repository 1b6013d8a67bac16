// Package health provides liveness and readiness endpoints for verdict.
//
// # Liveness vs Readiness
//
// The liveness check answers 200 as long as the process serves HTTP.
//
// The readiness check runs every registered check and answers 503 when any
// of them fails. verdict registers:
//
//   - rules: a rule set has been loaded (RuleSetCheck)
//   - history: the history database answers a ping (PingCheck), when
//     history is enabled
//
// A failed reload keeps the previous rule set active and does not make the
// process unready.
//
// # Usage
//
//	checker := health.New(0)
//	checker.RegisterCheck("rules", health.RuleSetCheck(manager))
//	health.Register(mux, checker, &cfg.Telemetry.Health, health.VersionInfo{Version: version})
package health
