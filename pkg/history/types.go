package history

import (
	"context"
	"errors"
	"time"

	"mercator-hq/verdict/pkg/engine"
)

// ErrRunNotFound is returned by Get when no run has the given ID.
var ErrRunNotFound = errors.New("run not found")

// Run is the stored outcome of one evaluation run.
type Run struct {
	ID             string        `json:"id"`
	RuleSetVersion string        `json:"rule_set_version"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Cycles         int           `json:"cycles"`
	Terminal       string        `json:"terminal"`

	// Fired lists firings in execution order.
	Fired []engine.Firing `json:"fired"`

	// ActionErrors holds the messages of non-fatal action failures.
	ActionErrors []string `json:"action_errors,omitempty"`

	// Error is the error Evaluate returned, if any.
	Error string `json:"error,omitempty"`
}

// NewRun converts an evaluation report into a run record.
func NewRun(report *engine.Report, err error) *Run {
	run := &Run{
		ID:             report.RunID,
		RuleSetVersion: report.RuleSetVersion,
		StartedAt:      report.StartedAt.UTC(),
		Duration:       report.Duration,
		Cycles:         report.Cycles,
		Terminal:       string(report.Terminal),
		Fired:          append([]engine.Firing(nil), report.Fired...),
		ActionErrors:   report.ActionErrorMessages(),
	}
	if run.Fired == nil {
		run.Fired = []engine.Firing{}
	}
	if err != nil {
		run.Error = err.Error()
	}
	return run
}

// FiredRules returns the names of fired rules in execution order.
func (r *Run) FiredRules() []string {
	names := make([]string, len(r.Fired))
	for i, f := range r.Fired {
		names[i] = f.Rule
	}
	return names
}

// Query filters runs. Zero fields match everything.
type Query struct {
	// Since matches runs started at or after this time.
	Since *time.Time

	// Until matches runs started strictly before this time.
	Until *time.Time

	// Terminal matches the terminal reason.
	Terminal string

	// RuleSetVersion matches the rule set version.
	RuleSetVersion string

	// Limit caps the number of results of List. 0 means no limit.
	Limit int

	// Offset skips the newest N results of List.
	Offset int
}

// Store persists run records. Implementations must be safe for concurrent
// use.
type Store interface {
	// Save persists a run. Saving an existing ID fails.
	Save(ctx context.Context, run *Run) error

	// Get returns the run with the given ID or ErrRunNotFound.
	Get(ctx context.Context, id string) (*Run, error)

	// List returns matching runs, newest first.
	List(ctx context.Context, query *Query) ([]*Run, error)

	// Count returns the number of matching runs. Limit and Offset are
	// ignored.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes matching runs and returns how many were removed.
	// Limit and Offset are ignored.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Close releases resources held by the store.
	Close() error
}

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // "sql" or "memory"
	Operation string // "save", "list", "delete", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return "storage error [backend=" + e.Backend + ", operation=" + e.Operation + "]: " + e.Cause.Error()
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

func newStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}
