package logging

import "context"

type contextKey string

const (
	runIDKey          contextKey = "run_id"
	ruleSetVersionKey contextKey = "rule_set_version"
)

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// GetRunID retrieves the run ID from the context.
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRuleSetVersion adds a rule set version to the context.
func WithRuleSetVersion(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, ruleSetVersionKey, version)
}

// GetRuleSetVersion retrieves the rule set version from the context.
func GetRuleSetVersion(ctx context.Context) string {
	if v, ok := ctx.Value(ruleSetVersionKey).(string); ok {
		return v
	}
	return ""
}
