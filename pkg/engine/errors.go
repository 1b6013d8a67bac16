package engine

import (
	"errors"
	"fmt"

	"mercator-hq/verdict/pkg/rdl/ast"
)

// Common sentinel errors
var (
	// ErrContextCancelled indicates the run's context was cancelled between
	// cycles.
	ErrContextCancelled = errors.New("evaluation context cancelled")

	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrUnknownAction indicates an action type with no registered handler.
	ErrUnknownAction = errors.New("unknown action")

	// ErrHandlerExists indicates a second registration for an action type.
	ErrHandlerExists = errors.New("action handler already registered")

	// ErrNilRuleSet indicates Evaluate was called without a rule set.
	ErrNilRuleSet = errors.New("rule set is nil")
)

// CompileError describes an invalid rule definition. Compilation stops at the
// first one.
type CompileError struct {
	// Rule is the name of the offending rule, or its index when unnamed.
	Rule string
	// Node is the path of the offending node inside the rule, such as
	// "condition.all[1].any[0]" or "actions[2]".
	Node     string
	Location ast.Location
	Message  string
	Cause    error
}

// Error returns the error message.
func (e *CompileError) Error() string {
	msg := fmt.Sprintf("rule %q", e.Rule)
	if e.Node != "" {
		msg += " at " + e.Node
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Location.IsValid() {
		msg += " (" + e.Location.String() + ")"
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *CompileError) Unwrap() error {
	return e.Cause
}

// ActionErrorKind classifies action failures.
type ActionErrorKind string

const (
	// UnknownAction means no handler is registered for the action type.
	UnknownAction ActionErrorKind = "unknown-action"

	// HandlerFailed means the handler ran and reported an error.
	HandlerFailed ActionErrorKind = "handler-failed"
)

// ActionError indicates an action dispatch failure.
type ActionError struct {
	Kind        ActionErrorKind
	Rule        string
	ActionType  string
	ActionIndex int
	Cycle       int
	Cause       error
}

// Error returns the error message.
func (e *ActionError) Error() string {
	prefix := fmt.Sprintf("rule %s action %d (%s)", e.Rule, e.ActionIndex, e.ActionType)
	if e.Rule == "" {
		prefix = fmt.Sprintf("action %s", e.ActionType)
	}
	if e.Kind == UnknownAction {
		return prefix + ": no handler registered"
	}
	return fmt.Sprintf("%s: handler failed: %v", prefix, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ActionError) Unwrap() error {
	return e.Cause
}

// Is reports UnknownAction errors as ErrUnknownAction.
func (e *ActionError) Is(target error) bool {
	return target == ErrUnknownAction && e.Kind == UnknownAction
}

// EvaluationError signals a broken engine invariant, such as a condition
// node of unknown kind. It does not occur for compiled rule sets.
type EvaluationError struct {
	Rule    string
	Message string
}

// Error returns the error message.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("rule %s: internal evaluation error: %s", e.Rule, e.Message)
}
