package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/verdict/pkg/config"
)

// EvaluationMetrics tracks engine runs.
//
// Metrics:
//   - verdict_engine_evaluations_total: Runs by terminal reason
//   - verdict_engine_evaluation_errors_total: Runs that returned an error, by reason
//   - verdict_engine_evaluation_duration_seconds: Run duration
//   - verdict_engine_evaluation_cycles: Cycles per run
//   - verdict_engine_rule_firings_total: Firings by rule
//   - verdict_engine_action_errors_total: Action failures by kind
type EvaluationMetrics struct {
	evaluationsTotal *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	duration         prometheus.Histogram
	cycles           prometheus.Histogram
	firingsTotal     *prometheus.CounterVec
	actionErrors     *prometheus.CounterVec
}

// NewEvaluationMetrics creates and registers evaluation metrics with the
// provided registry.
func NewEvaluationMetrics(cfg *config.MetricsConfig, registry prometheus.Registerer) *EvaluationMetrics {
	em := &EvaluationMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluations_total",
				Help:      "Total number of evaluation runs by terminal reason",
			},
			[]string{"terminal"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_errors_total",
				Help:      "Total number of evaluation runs that returned an error",
			},
			[]string{"reason"},
		),

		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of evaluation runs in seconds",
				Buckets:   cfg.DurationBuckets,
			},
		),

		cycles: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "evaluation_cycles",
				Help:      "Number of match/fire cycles per run",
				Buckets:   []float64{1, 2, 3, 5, 10, 25, 50, 100},
			},
		),

		firingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rule_firings_total",
				Help:      "Total number of rule firings",
			},
			[]string{"rule"},
		),

		actionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "action_errors_total",
				Help:      "Total number of failed actions by kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		em.evaluationsTotal,
		em.errorsTotal,
		em.duration,
		em.cycles,
		em.firingsTotal,
		em.actionErrors,
	)

	return em
}

// RecordRun records the outcome of one run.
func (em *EvaluationMetrics) RecordRun(terminal string, cycles int, duration time.Duration) {
	em.evaluationsTotal.WithLabelValues(terminal).Inc()
	em.cycles.Observe(float64(cycles))
	em.duration.Observe(duration.Seconds())
}

// RecordError records a run that returned an error.
func (em *EvaluationMetrics) RecordError(reason string) {
	em.errorsTotal.WithLabelValues(reason).Inc()
}

// RecordFiring records one firing of rule.
func (em *EvaluationMetrics) RecordFiring(rule string) {
	em.firingsTotal.WithLabelValues(rule).Inc()
}

// RecordActionError records one failed action.
func (em *EvaluationMetrics) RecordActionError(kind string) {
	em.actionErrors.WithLabelValues(kind).Inc()
}
