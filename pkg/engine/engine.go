package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/verdict/pkg/facts"
)

const tracerName = "mercator-hq/verdict/pkg/engine"

// Observer receives the outcome of every run. Implementations must be safe
// for concurrent use.
type Observer interface {
	ObserveEvaluation(report *Report, err error)
}

// Engine evaluates rule sets against fact contexts. It holds no per-run
// state, so one Engine serves concurrent runs as long as each run has its
// own fact context.
type Engine struct {
	// dispatcher executes actions
	dispatcher Dispatcher

	// logger for structured logging
	logger *slog.Logger

	// observers are notified after each run
	observers []Observer

	// tracer creates one span per run
	tracer trace.Tracer
}

// NewEngine creates an engine dispatching actions through dispatcher.
func NewEngine(dispatcher Dispatcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if dispatcher == nil {
		dispatcher = NewDefaultRegistry(logger)
	}
	return &Engine{
		dispatcher: dispatcher,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// WithObserver adds an observer notified after every run.
func (e *Engine) WithObserver(o Observer) *Engine {
	if o != nil {
		e.observers = append(e.observers, o)
	}
	return e
}

// WithTracer replaces the OpenTelemetry tracer.
func (e *Engine) WithTracer(t trace.Tracer) *Engine {
	if t != nil {
		e.tracer = t
	}
	return e
}

// Dispatcher returns the engine's action dispatcher.
func (e *Engine) Dispatcher() Dispatcher {
	return e.dispatcher
}

// Evaluate runs the agenda cycle of rs against fc until no rule fires, the
// cycle bound is reached, or a stop condition applies. fc is mutated by
// actions and holds the final facts afterwards.
//
// Action failures are collected in the report. Evaluate returns an error
// only for invalid input, cancellation, internal evaluation errors, and
// action failures under AbortRun; the report is non-nil in all but the
// first case.
func (e *Engine) Evaluate(ctx context.Context, rs *RuleSet, fc *facts.Context, cfg *Config) (report *Report, err error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rs == nil {
		return nil, ErrNilRuleSet
	}
	if fc == nil {
		return nil, fmt.Errorf("fact context is nil")
	}

	ctx, span := e.tracer.Start(ctx, "engine.Evaluate", trace.WithAttributes(
		attribute.String("verdict.rule_set.version", rs.Version()),
		attribute.Int("verdict.rule_set.rules", rs.Len()),
		attribute.Int("verdict.max_cycles", cfg.MaxCycles),
	))
	defer span.End()

	report = &Report{
		RunID:          uuid.NewString(),
		RuleSetVersion: rs.Version(),
		Fired:          []Firing{},
		StartedAt:      time.Now(),
	}
	if cfg.EnableTrace {
		report.Trace = &Trace{}
	}

	defer func() {
		report.Duration = time.Since(report.StartedAt)
		span.SetAttributes(
			attribute.String("verdict.run_id", report.RunID),
			attribute.Int("verdict.cycles", report.Cycles),
			attribute.Int("verdict.fired", len(report.Fired)),
			attribute.String("verdict.terminal", string(report.Terminal)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		e.logger.Debug("evaluation completed",
			"run_id", report.RunID,
			"cycles", report.Cycles,
			"fired", len(report.Fired),
			"action_errors", len(report.ActionErrors),
			"terminal", report.Terminal,
			"duration", report.Duration,
		)
		for _, o := range e.observers {
			o.ObserveEvaluation(report, err)
		}
	}()

	for cycle := 1; ; cycle++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			report.Terminal = Cancelled
			return report, fmt.Errorf("%w: %v", ErrContextCancelled, ctxErr)
		}
		report.Cycles = cycle

		var ct *CycleTrace
		if report.Trace != nil {
			report.Trace.Cycles = append(report.Trace.Cycles, CycleTrace{Cycle: cycle})
			ct = &report.Trace.Cycles[len(report.Trace.Cycles)-1]
		}

		agenda, err := e.match(rs, fc, ct)
		if err != nil {
			return report, err
		}
		if len(agenda) == 0 {
			report.Terminal = Idle
			return report, nil
		}

		orderAgenda(agenda)
		if cfg.StopOnFirstMatch {
			agenda = agenda[:1]
		}
		if ct != nil {
			for _, r := range agenda {
				ct.Agenda = append(ct.Agenda, r.Name)
			}
		}

		executed, err := e.fire(ctx, agenda, fc, cfg, cycle, report, ct)
		if err != nil {
			report.Terminal = ActionAborted
			return report, err
		}

		switch {
		case cfg.StopOnFirstMatch:
			report.Terminal = StopOnFirstMatch
			return report, nil
		case executed == 0:
			report.Terminal = Idle
			return report, nil
		case cycle >= cfg.MaxCycles:
			report.Terminal = CycleLimitReached
			return report, nil
		}
	}
}

// match evaluates every rule independently against fc and returns the
// matching ones in declaration order.
func (e *Engine) match(rs *RuleSet, fc *facts.Context, ct *CycleTrace) ([]*Rule, error) {
	var agenda []*Rule
	for _, rule := range rs.rules {
		matched, err := rule.Matches(fc)
		if err != nil {
			e.logger.Error("condition evaluation failed", "rule", rule.Name, "error", err)
			return nil, err
		}
		if ct != nil {
			ct.Matches = append(ct.Matches, RuleMatch{Rule: rule.Name, Matched: matched})
		}
		if matched {
			agenda = append(agenda, rule)
		}
	}
	return agenda, nil
}

// fire dispatches the actions of each agenda rule in order. It returns the
// number of actions whose handler ran, successfully or not, and a non-nil
// error only when the AbortRun policy ends the run.
func (e *Engine) fire(ctx context.Context, agenda []*Rule, fc *facts.Context, cfg *Config, cycle int, report *Report, ct *CycleTrace) (int, error) {
	executed := 0

	for _, rule := range agenda {
		firing := Firing{Rule: rule.Name, Priority: rule.Priority, Cycle: cycle}
		abortCycle := false

		for i, action := range rule.Actions {
			start := time.Now()
			err := e.dispatcher.Dispatch(ctx, action, fc)
			if ct != nil {
				at := ActionTrace{Rule: rule.Name, Index: i, Type: action.Type, Duration: time.Since(start)}
				if err != nil {
					at.Error = err.Error()
				}
				ct.Actions = append(ct.Actions, at)
			}

			if err == nil {
				executed++
				firing.ActionsExecuted++
				continue
			}

			actionErr := toActionError(err, rule, action, i, cycle)
			if actionErr.Kind == HandlerFailed {
				executed++
				firing.ActionsExecuted++
			}
			firing.Failed = true
			report.ActionErrors = append(report.ActionErrors, actionErr)

			e.logger.Warn("action failed",
				"run_id", report.RunID,
				"rule", rule.Name,
				"action", action.Type,
				"kind", actionErr.Kind,
				"cycle", cycle,
				"policy", cfg.OnActionError,
				"error", actionErr,
			)

			switch cfg.OnActionError {
			case AbortRun:
				report.Fired = append(report.Fired, firing)
				return executed, actionErr
			case AbortCycle:
				abortCycle = true
			}
			break
		}

		report.Fired = append(report.Fired, firing)
		e.logger.Debug("rule fired", "run_id", report.RunID, "rule", rule.Name, "cycle", cycle, "actions", firing.ActionsExecuted)
		if abortCycle {
			break
		}
	}

	return executed, nil
}

// toActionError fills in the firing context of a dispatch error. Errors
// that are not *ActionError come from custom dispatchers and count as
// handler failures.
func toActionError(err error, rule *Rule, action *ActionSpec, index, cycle int) *ActionError {
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		filled := *actionErr
		filled.Rule = rule.Name
		filled.ActionIndex = index
		filled.Cycle = cycle
		if filled.ActionType == "" {
			filled.ActionType = action.Type
		}
		return &filled
	}
	return &ActionError{
		Kind:        HandlerFailed,
		Rule:        rule.Name,
		ActionType:  action.Type,
		ActionIndex: index,
		Cycle:       cycle,
		Cause:       err,
	}
}
