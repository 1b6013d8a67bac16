// Package tracing configures OpenTelemetry tracing for verdict.
//
// The engine creates one span per evaluation run ("engine.Evaluate") and
// the reload manager one per reload ("reload.Reload"). Both obtain their
// tracer from the global provider, which New installs when tracing is
// enabled. Spans are exported over OTLP gRPC.
//
// # Sampling
//
//   - always: every run is traced
//   - never: no run is traced
//   - ratio: sample_ratio of runs, decided by trace ID
//
// All samplers are parent based, so a run started under a sampled parent
// span is always sampled.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//	eng.WithTracer(tracer.Tracer())
package tracing
