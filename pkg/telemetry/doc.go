// Package telemetry groups verdict's observability packages.
//
// # Components
//
//   - logging: structured slog logging with run correlation and secret masking
//   - metrics: Prometheus metrics for runs, firings and reloads
//   - tracing: OpenTelemetry spans for evaluation runs, exported over OTLP
//   - health: liveness and readiness endpoints
//
// Metrics and health endpoints are served by pkg/server on
// telemetry.metrics.listen_address.
package telemetry
