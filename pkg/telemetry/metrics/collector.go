package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/verdict/pkg/config"
	"mercator-hq/verdict/pkg/engine"
	"mercator-hq/verdict/pkg/reload"
)

// OtherRule is the label used for rules beyond the cardinality limit.
const OtherRule = "other"

// Error reasons for runs that returned an error.
const (
	ReasonInvalidInput = "invalid-input"
	ReasonCancelled    = "cancelled"
	ReasonActionAbort  = "action-aborted"
	ReasonEvaluation   = "evaluation"
)

// Collector owns all Prometheus metrics of a verdict process. It observes
// engine runs as an engine.Observer and reloads as a reload.Listener.
//
// All methods are safe for concurrent use.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	evaluation *EvaluationMetrics
	reload     *ReloadMetrics

	// Cardinality tracking for the rule label
	cardinalityLimiter *CardinalityLimiter
}

// RecorderStats exposes the counters of an asynchronous history recorder.
// *history.Recorder satisfies it.
type RecorderStats interface {
	Recorded() int64
	Dropped() int64
	Failed() int64
}

// NewCollector creates a new metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a new registry
// is created. Unset namespace, subsystem and buckets take the configuration
// defaults.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	eng.WithObserver(collector)
//	manager.AddListener(collector)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = append([]float64(nil), config.DefaultDurationBuckets...)
	}
	if cfg.MaxRuleLabels <= 0 {
		cfg.MaxRuleLabels = config.DefaultMetricsMaxRuleLabels
	}

	c := &Collector{
		config:             cfg,
		registry:           registry,
		cardinalityLimiter: NewCardinalityLimiter(cfg.MaxRuleLabels),
	}

	c.evaluation = NewEvaluationMetrics(cfg, registry)
	c.reload = NewReloadMetrics(cfg, registry)

	return c
}

// ObserveEvaluation records the outcome of one run. It implements
// engine.Observer.
func (c *Collector) ObserveEvaluation(report *engine.Report, err error) {
	if !c.config.Enabled {
		return
	}

	if err != nil {
		c.evaluation.RecordError(errorReason(err))
	}
	if report == nil {
		return
	}

	c.evaluation.RecordRun(string(report.Terminal), report.Cycles, report.Duration)
	for _, f := range report.Fired {
		rule := f.Rule
		if !c.cardinalityLimiter.Allow(rule) {
			rule = OtherRule
		}
		c.evaluation.RecordFiring(rule)
	}
	for _, ae := range report.ActionErrors {
		c.evaluation.RecordActionError(string(ae.Kind))
	}
}

// OnReload records one reload attempt. It implements reload.Listener.
func (c *Collector) OnReload(event reload.Event) {
	if !c.config.Enabled {
		return
	}

	c.reload.RecordReload(event.Trigger, event.Err == nil, event.Duration.Seconds(), event.Rules, event.Generation)
}

// RegisterRecorder exposes the counters of a history recorder.
func (c *Collector) RegisterRecorder(stats RecorderStats) error {
	counter := func(name, help string, fn func() int64) prometheus.Collector {
		return prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: c.config.Namespace,
				Subsystem: "history",
				Name:      name,
				Help:      help,
			},
			func() float64 { return float64(fn()) },
		)
	}

	for _, col := range []prometheus.Collector{
		counter("runs_recorded_total", "Total number of runs written to the history store", stats.Recorded),
		counter("runs_dropped_total", "Total number of runs dropped because the recorder queue was full", stats.Dropped),
		counter("runs_failed_total", "Total number of runs the history store failed to save", stats.Failed),
	} {
		if err := c.registry.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func errorReason(err error) string {
	var actionErr *engine.ActionError
	switch {
	case errors.Is(err, engine.ErrContextCancelled):
		return ReasonCancelled
	case errors.As(err, &actionErr):
		return ReasonActionAbort
	case errors.Is(err, engine.ErrInvalidConfig), errors.Is(err, engine.ErrNilRuleSet):
		return ReasonInvalidInput
	default:
		return ReasonEvaluation
	}
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label value is allowed. Returns true if the value
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(label string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[label]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[label]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[label] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
