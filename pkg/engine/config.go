package engine

import (
	"fmt"
)

// ConflictResolution selects the firing order among rules that match in the
// same cycle.
type ConflictResolution string

const (
	// PriorityThenDeclarationOrder fires higher priorities first and breaks
	// ties by position in the rule set. It is the only supported policy.
	PriorityThenDeclarationOrder ConflictResolution = "priority-then-declaration-order"
)

// OnActionError determines how the engine reacts when an action fails.
type OnActionError string

const (
	// ContinueRule skips the remaining actions of the failing firing and
	// continues with the next matched rule. This is the default.
	ContinueRule OnActionError = "continue-rule"

	// AbortCycle skips every remaining firing of the current cycle. The run
	// continues with the next cycle if the cycle bound allows it.
	AbortCycle OnActionError = "abort-cycle"

	// AbortRun stops the run and returns the action error.
	AbortRun OnActionError = "abort-run"
)

// Config controls a single evaluation run.
type Config struct {
	// MaxCycles bounds the number of match/fire cycles. 1 disables
	// re-triggering.
	// Default: 1.
	MaxCycles int

	// ConflictResolution orders simultaneously matching rules.
	// Default: PriorityThenDeclarationOrder.
	ConflictResolution ConflictResolution

	// StopOnFirstMatch fires only the first rule in firing order and ends
	// the run.
	// Default: false.
	StopOnFirstMatch bool

	// OnActionError selects how action failures propagate.
	// Default: ContinueRule.
	OnActionError OnActionError

	// EnableTrace records per-rule match results and per-action outcomes in
	// the report.
	// Warning: Enabling trace adds allocation overhead.
	// Default: false.
	EnableTrace bool
}

// DefaultConfig returns the default run configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxCycles:          1,
		ConflictResolution: PriorityThenDeclarationOrder,
		StopOnFirstMatch:   false,
		OnActionError:      ContinueRule,
		EnableTrace:        false,
	}
}

// Validate validates the run configuration.
func (c *Config) Validate() error {
	if c.MaxCycles < 1 {
		return fmt.Errorf("%w: max cycles must be at least 1, got %d", ErrInvalidConfig, c.MaxCycles)
	}

	switch c.ConflictResolution {
	case PriorityThenDeclarationOrder:
	default:
		return fmt.Errorf("%w: unsupported conflict resolution %q", ErrInvalidConfig, c.ConflictResolution)
	}

	switch c.OnActionError {
	case ContinueRule, AbortCycle, AbortRun:
	default:
		return fmt.Errorf("%w: invalid on-action-error policy %q", ErrInvalidConfig, c.OnActionError)
	}

	return nil
}

// WithMaxCycles sets the cycle bound.
func (c *Config) WithMaxCycles(n int) *Config {
	c.MaxCycles = n
	return c
}

// WithStopOnFirstMatch enables or disables single-firing runs.
func (c *Config) WithStopOnFirstMatch(stop bool) *Config {
	c.StopOnFirstMatch = stop
	return c
}

// WithOnActionError sets the action error policy.
func (c *Config) WithOnActionError(policy OnActionError) *Config {
	c.OnActionError = policy
	return c
}

// WithTrace enables or disables evaluation tracing.
func (c *Config) WithTrace(enabled bool) *Config {
	c.EnableTrace = enabled
	return c
}

// ParseOnActionError converts a configuration string into an OnActionError.
// The empty string selects the default.
func ParseOnActionError(s string) (OnActionError, error) {
	switch OnActionError(s) {
	case "":
		return ContinueRule, nil
	case ContinueRule, AbortCycle, AbortRun:
		return OnActionError(s), nil
	default:
		return "", fmt.Errorf("%w: invalid on-action-error policy %q", ErrInvalidConfig, s)
	}
}
