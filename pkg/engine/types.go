package engine

import (
	"time"
)

// TerminalReason records why a run stopped.
type TerminalReason string

const (
	// Idle means a cycle matched no rule, or matched rules executed no
	// action.
	Idle TerminalReason = "idle"

	// CycleLimitReached means the last permitted cycle fired. It is not an
	// error.
	CycleLimitReached TerminalReason = "cycle-limit-reached"

	// StopOnFirstMatch means the run fired its single permitted rule.
	StopOnFirstMatch TerminalReason = "stop-on-first-match"

	// ActionAborted means an action failed under the AbortRun policy.
	ActionAborted TerminalReason = "action-aborted"

	// Cancelled means the run's context was cancelled between cycles.
	Cancelled TerminalReason = "cancelled"
)

// Firing records one rule firing.
type Firing struct {
	Rule            string `json:"rule"`
	Priority        int    `json:"priority"`
	Cycle           int    `json:"cycle"`
	ActionsExecuted int    `json:"actions_executed"`
	Failed          bool   `json:"failed,omitempty"`
}

// Report is the outcome of one evaluation run.
type Report struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// RuleSetVersion is the Version of the evaluated rule set.
	RuleSetVersion string `json:"rule_set_version"`

	// Cycles is the number of cycles started.
	Cycles int `json:"cycles"`

	// Fired lists firings in execution order.
	Fired []Firing `json:"fired"`

	// Terminal is the reason the run stopped.
	Terminal TerminalReason `json:"terminal"`

	// ActionErrors holds every action failure, in order.
	ActionErrors []*ActionError `json:"-"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	// Trace is set when Config.EnableTrace is true.
	Trace *Trace `json:"trace,omitempty"`
}

// FiredRules returns the names of fired rules in execution order.
func (r *Report) FiredRules() []string {
	names := make([]string, len(r.Fired))
	for i, f := range r.Fired {
		names[i] = f.Rule
	}
	return names
}

// ActionErrorMessages returns the action errors as strings, for
// serialization.
func (r *Report) ActionErrorMessages() []string {
	msgs := make([]string, len(r.ActionErrors))
	for i, err := range r.ActionErrors {
		msgs[i] = err.Error()
	}
	return msgs
}

// Trace is a detailed record of a run for debugging.
type Trace struct {
	Cycles []CycleTrace `json:"cycles"`
}

// CycleTrace records one cycle.
type CycleTrace struct {
	Cycle   int           `json:"cycle"`
	Matches []RuleMatch   `json:"matches"`
	Agenda  []string      `json:"agenda"`
	Actions []ActionTrace `json:"actions"`
}

// RuleMatch records the condition result of one rule in a cycle.
type RuleMatch struct {
	Rule    string `json:"rule"`
	Matched bool   `json:"matched"`
}

// ActionTrace records one dispatched action.
type ActionTrace struct {
	Rule     string        `json:"rule"`
	Index    int           `json:"index"`
	Type     string        `json:"type"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}
