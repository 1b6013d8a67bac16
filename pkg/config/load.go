package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults. It does not validate.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Environment variables follow the
// naming convention VERDICT_SECTION_FIELD (e.g., VERDICT_ENGINE_MAX_CYCLES)
// and always take precedence over file-based configuration.
//
// An empty path skips the file and starts from defaults.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies VERDICT_* environment variables to cfg.
func applyEnvOverrides(cfg *Config) error {
	var errs []FieldError

	str := func(name string, dst *string) {
		if val, ok := os.LookupEnv(name); ok {
			*dst = val
		}
	}
	integer := func(name string, dst *int) {
		if val, ok := os.LookupEnv(name); ok {
			i, err := strconv.Atoi(val)
			if err != nil {
				errs = append(errs, FieldError{Field: name, Message: fmt.Sprintf("invalid integer %q", val)})
				return
			}
			*dst = i
		}
	}
	integer64 := func(name string, dst *int64) {
		if val, ok := os.LookupEnv(name); ok {
			i, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				errs = append(errs, FieldError{Field: name, Message: fmt.Sprintf("invalid integer %q", val)})
				return
			}
			*dst = i
		}
	}
	boolean := func(name string, dst *bool) {
		if val, ok := os.LookupEnv(name); ok {
			b, err := strconv.ParseBool(val)
			if err != nil {
				errs = append(errs, FieldError{Field: name, Message: fmt.Sprintf("invalid boolean %q", val)})
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if val, ok := os.LookupEnv(name); ok {
			d, err := time.ParseDuration(val)
			if err != nil {
				errs = append(errs, FieldError{Field: name, Message: fmt.Sprintf("invalid duration %q", val)})
				return
			}
			*dst = d
		}
	}
	float := func(name string, dst *float64) {
		if val, ok := os.LookupEnv(name); ok {
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				errs = append(errs, FieldError{Field: name, Message: fmt.Sprintf("invalid number %q", val)})
				return
			}
			*dst = f
		}
	}

	// Engine overrides
	integer("VERDICT_ENGINE_MAX_CYCLES", &cfg.Engine.MaxCycles)
	boolean("VERDICT_ENGINE_STOP_ON_FIRST_MATCH", &cfg.Engine.StopOnFirstMatch)
	str("VERDICT_ENGINE_ON_ACTION_ERROR", &cfg.Engine.OnActionError)
	boolean("VERDICT_ENGINE_ENABLE_TRACE", &cfg.Engine.EnableTrace)
	duration("VERDICT_ENGINE_TIMEOUT", &cfg.Engine.Timeout)
	boolean("VERDICT_ENGINE_STRICT_ACTIONS", &cfg.Engine.StrictActions)

	// Rules overrides
	str("VERDICT_RULES_MODE", &cfg.Rules.Mode)
	str("VERDICT_RULES_PATH", &cfg.Rules.Path)
	str("VERDICT_RULES_RELOAD_SCHEDULE", &cfg.Rules.ReloadSchedule)
	boolean("VERDICT_RULES_WATCH_ENABLED", &cfg.Rules.Watch.Enabled)
	str("VERDICT_RULES_GIT_REPOSITORY", &cfg.Rules.Git.Repository)
	str("VERDICT_RULES_GIT_BRANCH", &cfg.Rules.Git.Branch)
	str("VERDICT_RULES_GIT_LOCAL_PATH", &cfg.Rules.Git.LocalPath)
	str("VERDICT_RULES_GIT_AUTH_TYPE", &cfg.Rules.Git.Auth.Type)
	str("VERDICT_RULES_GIT_AUTH_TOKEN", &cfg.Rules.Git.Auth.Token)
	str("VERDICT_RULES_GIT_AUTH_SSH_KEY_PATH", &cfg.Rules.Git.Auth.SSHKeyPath)

	// History overrides
	boolean("VERDICT_HISTORY_ENABLED", &cfg.History.Enabled)
	str("VERDICT_HISTORY_DRIVER", &cfg.History.Driver)
	str("VERDICT_HISTORY_DSN", &cfg.History.DSN)
	duration("VERDICT_HISTORY_RETENTION_MAX_AGE", &cfg.History.Retention.MaxAge)
	integer64("VERDICT_HISTORY_RETENTION_MAX_RUNS", &cfg.History.Retention.MaxRuns)

	// Telemetry overrides
	str("VERDICT_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	str("VERDICT_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	boolean("VERDICT_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	str("VERDICT_TELEMETRY_METRICS_LISTEN_ADDRESS", &cfg.Telemetry.Metrics.ListenAddress)
	boolean("VERDICT_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	str("VERDICT_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	float("VERDICT_TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)

	// Secrets overrides
	str("VERDICT_SECRETS_DIR", &cfg.Secrets.Dir)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
