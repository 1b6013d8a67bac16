package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "engine.max_cycles").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateRules(&cfg.Rules)...)
	errs = append(errs, validateHistory(&cfg.History)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxCycles < 1 {
		errs = append(errs, FieldError{Field: "engine.max_cycles", Message: "must be at least 1"})
	}
	switch cfg.OnActionError {
	case "continue-rule", "abort-cycle", "abort-run":
	default:
		errs = append(errs, FieldError{
			Field:   "engine.on_action_error",
			Message: fmt.Sprintf("invalid policy %q: must be 'continue-rule', 'abort-cycle', or 'abort-run'", cfg.OnActionError),
		})
	}
	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{Field: "engine.timeout", Message: "must not be negative"})
	}
	if cfg.MaxDepth < 1 {
		errs = append(errs, FieldError{Field: "engine.max_depth", Message: "must be at least 1"})
	}
	if cfg.MaxRules < 1 {
		errs = append(errs, FieldError{Field: "engine.max_rules", Message: "must be at least 1"})
	}
	return errs
}

func validateRules(cfg *RulesConfig) []FieldError {
	var errs []FieldError

	switch cfg.Mode {
	case "file":
		if cfg.Path == "" {
			errs = append(errs, FieldError{Field: "rules.path", Message: "field is required when rules.mode is \"file\""})
		}
	case "git":
		errs = append(errs, validateGit(&cfg.Git)...)
		if cfg.Watch.Enabled {
			errs = append(errs, FieldError{Field: "rules.watch.enabled", Message: "watching is not supported for git rules, use rules.reload_schedule"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "rules.mode",
			Message: fmt.Sprintf("invalid mode %q: must be 'file' or 'git'", cfg.Mode),
		})
	}

	if cfg.Watch.DebounceInterval < 0 {
		errs = append(errs, FieldError{Field: "rules.watch.debounce_interval", Message: "must not be negative"})
	}
	if err := validateSchedule(cfg.ReloadSchedule); err != nil {
		errs = append(errs, FieldError{Field: "rules.reload_schedule", Message: err.Error()})
	}
	return errs
}

func validateGit(cfg *GitRulesConfig) []FieldError {
	var errs []FieldError

	if cfg.Repository == "" {
		errs = append(errs, FieldError{Field: "rules.git.repository", Message: "field is required when rules.mode is \"git\""})
	}
	if cfg.LocalPath == "" {
		errs = append(errs, FieldError{Field: "rules.git.local_path", Message: "field is required"})
	}
	if cfg.Depth < 0 {
		errs = append(errs, FieldError{Field: "rules.git.depth", Message: "must not be negative"})
	}

	switch cfg.Auth.Type {
	case "none":
	case "token":
		if cfg.Auth.Token == "" {
			errs = append(errs, FieldError{Field: "rules.git.auth.token", Message: "field is required for token authentication"})
		}
	case "ssh":
		if cfg.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{Field: "rules.git.auth.ssh_key_path", Message: "field is required for ssh authentication"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "rules.git.auth.type",
			Message: fmt.Sprintf("invalid auth type %q: must be 'none', 'token', or 'ssh'", cfg.Auth.Type),
		})
	}
	return errs
}

func validateHistory(cfg *HistoryConfig) []FieldError {
	var errs []FieldError
	if !cfg.Enabled {
		return errs
	}

	switch cfg.Driver {
	case "memory":
	case "sqlite", "sqlite3", "postgres":
		if cfg.DSN == "" {
			errs = append(errs, FieldError{Field: "history.dsn", Message: fmt.Sprintf("field is required for driver %q", cfg.Driver)})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "history.driver",
			Message: fmt.Sprintf("invalid driver %q: must be 'sqlite', 'sqlite3', 'postgres', or 'memory'", cfg.Driver),
		})
	}

	if cfg.Recorder.AsyncBuffer < 1 {
		errs = append(errs, FieldError{Field: "history.recorder.async_buffer", Message: "must be at least 1"})
	}
	if cfg.Retention.MaxAge < 0 {
		errs = append(errs, FieldError{Field: "history.retention.max_age", Message: "must not be negative"})
	}
	if cfg.Retention.MaxRuns < 0 {
		errs = append(errs, FieldError{Field: "history.retention.max_runs", Message: "must not be negative"})
	}
	if err := validateSchedule(cfg.Retention.Schedule); err != nil {
		errs = append(errs, FieldError{Field: "history.retention.schedule", Message: err.Error()})
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled || cfg.Health.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.ListenAddress); err != nil {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.listen_address",
				Message: fmt.Sprintf("invalid address %q: %v", cfg.Metrics.ListenAddress, err),
			})
		}
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}
	if cfg.Metrics.MaxRuleLabels < 0 {
		errs = append(errs, FieldError{Field: "telemetry.metrics.max_rule_labels", Message: "must not be negative"})
	}

	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "tracing endpoint is required when tracing is enabled"})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "sample ratio must be between 0.0 and 1.0"})
	}

	if cfg.Health.Enabled {
		if !strings.HasPrefix(cfg.Health.LivenessPath, "/") {
			errs = append(errs, FieldError{Field: "telemetry.health.liveness_path", Message: "must start with /"})
		}
		if !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
			errs = append(errs, FieldError{Field: "telemetry.health.readiness_path", Message: "must start with /"})
		}
		if cfg.Health.LivenessPath == cfg.Health.ReadinessPath {
			errs = append(errs, FieldError{Field: "telemetry.health.readiness_path", Message: "must differ from liveness_path"})
		}
	}
	return errs
}

// validateSchedule accepts an empty schedule or a standard cron expression.
func validateSchedule(schedule string) error {
	if schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron expression %q: %v", schedule, err)
	}
	return nil
}
