package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/verdict/pkg/config"
)

// Reload results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// ReloadMetrics tracks rule set reloads.
//
// Metrics:
//   - verdict_engine_reloads_total: Reload attempts by trigger and result
//   - verdict_engine_reload_duration_seconds: Reload duration
//   - verdict_engine_rule_set_rules: Rules in the active rule set
//   - verdict_engine_rule_set_generation: Generation of the active rule set
type ReloadMetrics struct {
	reloadsTotal *prometheus.CounterVec
	duration     prometheus.Histogram
	rules        prometheus.Gauge
	generation   prometheus.Gauge
}

// NewReloadMetrics creates and registers reload metrics with the provided
// registry.
func NewReloadMetrics(cfg *config.MetricsConfig, registry prometheus.Registerer) *ReloadMetrics {
	rm := &ReloadMetrics{
		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "reloads_total",
				Help:      "Total number of rule set reload attempts",
			},
			[]string{"trigger", "result"},
		),

		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "reload_duration_seconds",
				Help:      "Duration of rule set reloads in seconds",
				// Loading and compiling; git fetches dominate the tail
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
		),

		rules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_set_rules",
				Help:      "Number of rules in the active rule set",
			},
		),

		generation: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_set_generation",
				Help:      "Generation of the active rule set",
			},
		),
	}

	registry.MustRegister(
		rm.reloadsTotal,
		rm.duration,
		rm.rules,
		rm.generation,
	)

	return rm
}

// RecordReload records one reload attempt. The rule set gauges only move
// on success, since a failed reload keeps the previous rule set.
func (rm *ReloadMetrics) RecordReload(trigger string, ok bool, seconds float64, rules int, generation uint64) {
	result := ResultSuccess
	if !ok {
		result = ResultFailure
	}
	rm.reloadsTotal.WithLabelValues(trigger, result).Inc()
	rm.duration.Observe(seconds)

	if ok {
		rm.rules.Set(float64(rules))
		rm.generation.Set(float64(generation))
	}
}
