// Package server runs the HTTP server that exposes verdict's metrics and
// health endpoints.
//
// The server only carries telemetry: rules are evaluated in process or
// through the CLI, never over HTTP.
//
//	mux := http.NewServeMux()
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//	health.Register(mux, checker, &cfg.Telemetry.Health, info)
//
//	srv := server.NewServer(server.Config{ListenAddress: addr}, mux, logger)
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// Start blocks until ctx is cancelled and then shuts down gracefully.
package server
