// Package metrics provides Prometheus metrics for verdict.
//
// # Overview
//
// A Collector is registered as an engine.Observer and a reload.Listener:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	eng.WithObserver(collector)
//	manager.AddListener(collector)
//
// # Metrics
//
//   - evaluations_total{terminal}: runs by terminal reason
//   - evaluation_errors_total{reason}: runs that returned an error
//   - evaluation_duration_seconds: run duration
//   - evaluation_cycles: cycles per run
//   - rule_firings_total{rule}: firings per rule
//   - action_errors_total{kind}: failed actions
//   - reloads_total{trigger,result}: reload attempts
//   - rule_set_rules, rule_set_generation: the active rule set
//
// Names carry the configured namespace and subsystem, by default
// verdict_engine_. A history recorder can be exposed with RegisterRecorder
// under verdict_history_.
//
// # Cardinality Management
//
// Rule names are user defined. At most MaxRuleLabels distinct names are
// used as label values; firings of further rules are counted under "other".
package metrics
