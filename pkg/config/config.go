package config

import "time"

// Config is the root configuration structure for verdict.
type Config struct {
	// Engine contains run limits and rule compilation settings.
	Engine EngineConfig `yaml:"engine"`

	// Rules describes where rule definitions are loaded from and how they
	// are reloaded.
	Rules RulesConfig `yaml:"rules"`

	// History contains configuration for recording run outcomes.
	History HistoryConfig `yaml:"history"`

	// Telemetry contains configuration for logging, metrics, tracing, and
	// health endpoints.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Secrets configures resolution of ${secret:name} references.
	Secrets SecretsConfig `yaml:"secrets"`
}

// SecretsConfig configures where ${secret:name} references in the git
// credentials and the history DSN are resolved from.
type SecretsConfig struct {
	// EnvPrefix is prepended to the environment variable of each secret.
	// Default: "VERDICT_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir is a directory holding one file per secret. Empty disables file
	// secrets.
	Dir string `yaml:"dir"`
}

// EngineConfig contains configuration for evaluation runs.
type EngineConfig struct {
	// MaxCycles bounds the number of match/fire cycles per run.
	// Default: 1
	MaxCycles int `yaml:"max_cycles"`

	// StopOnFirstMatch fires only the highest ranked matching rule.
	// Default: false
	StopOnFirstMatch bool `yaml:"stop_on_first_match"`

	// OnActionError selects how action failures propagate.
	// Options: "continue-rule", "abort-cycle", "abort-run"
	// Default: "continue-rule"
	OnActionError string `yaml:"on_action_error"`

	// EnableTrace records per-rule match results in every report.
	// Default: false
	EnableTrace bool `yaml:"enable_trace"`

	// Timeout bounds a single run. 0 disables the timeout.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`

	// MaxDepth is the maximum condition nesting depth.
	// Default: 10
	MaxDepth int `yaml:"max_depth"`

	// MaxRules is the maximum number of rules in one rule set.
	// Default: 10000
	MaxRules int `yaml:"max_rules"`

	// StrictActions rejects rule sets that reference action types with no
	// registered handler.
	// Default: true
	StrictActions bool `yaml:"strict_actions"`
}

// RulesConfig contains configuration for the rule source.
type RulesConfig struct {
	// Mode selects the rule source.
	// Options: "file", "git"
	// Default: "file"
	Mode string `yaml:"mode"`

	// Path is a rule file or a directory of rule files. In git mode it is
	// relative to the repository root.
	// Default: "./rules"
	Path string `yaml:"path"`

	// Git contains repository settings used when Mode is "git".
	Git GitRulesConfig `yaml:"git"`

	// Watch reloads file rules when they change on disk.
	Watch WatchConfig `yaml:"watch"`

	// ReloadSchedule is a standard cron expression for periodic reloads.
	// In git mode each scheduled reload pulls the repository first.
	// Example: "*/5 * * * *"
	// Default: "" (disabled)
	ReloadSchedule string `yaml:"reload_schedule"`
}

// GitRulesConfig contains git repository configuration for rule loading.
type GitRulesConfig struct {
	// Repository is the clone URL.
	Repository string `yaml:"repository"`

	// Branch is the branch to check out.
	// Default: "main"
	Branch string `yaml:"branch"`

	// LocalPath is where the repository is cloned.
	// Default: "data/rules-repo"
	LocalPath string `yaml:"local_path"`

	// Depth limits clone history. 0 clones full history.
	// Default: 1
	Depth int `yaml:"depth"`

	// CleanOnStart removes an existing clone before cloning.
	// Default: false
	CleanOnStart bool `yaml:"clean_on_start"`

	// Timeout bounds clone and pull operations.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Auth contains repository credentials.
	Auth GitAuthConfig `yaml:"auth"`
}

// GitAuthConfig contains git authentication settings.
type GitAuthConfig struct {
	// Type selects the authentication method.
	// Options: "none", "token", "ssh"
	// Default: "none"
	Type string `yaml:"type"`

	// Token is a personal access token, usually supplied through
	// VERDICT_RULES_GIT_AUTH_TOKEN.
	Token string `yaml:"token"`

	// SSHKeyPath is the path to a private key.
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase unlocks an encrypted private key.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// WatchConfig contains file watching configuration.
type WatchConfig struct {
	// Enabled turns on file watching.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// DebounceInterval coalesces bursts of file events into one reload.
	// Default: 250ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// HistoryConfig contains configuration for run history.
type HistoryConfig struct {
	// Enabled turns on run recording.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Driver selects the database driver.
	// Options: "sqlite", "sqlite3", "postgres", "memory"
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// DSN is a file path for SQLite or a connection URL for PostgreSQL.
	// Default: "data/history.db"
	DSN string `yaml:"dsn"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 0 (driver specific)
	MaxOpenConns int `yaml:"max_open_conns"`

	// Recorder contains async recorder settings.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention contains pruning settings.
	Retention RetentionConfig `yaml:"retention"`
}

// RecorderConfig contains configuration for the async run recorder.
type RecorderConfig struct {
	// AsyncBuffer is the size of the write queue.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds a single write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig contains configuration for history pruning.
type RetentionConfig struct {
	// MaxAge is how long runs are kept. 0 keeps runs forever.
	// Default: 720h (30 days)
	MaxAge time.Duration `yaml:"max_age"`

	// MaxRuns caps the number of stored runs. 0 means unlimited.
	// Default: 0
	MaxRuns int64 `yaml:"max_runs"`

	// Schedule is a standard cron expression for pruning.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress is where the telemetry HTTP server listens. It serves
	// the metrics and health endpoints.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "verdict"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "engine"
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets defines histogram buckets for run duration (seconds).
	// Default: exponential from 10µs to ~160ms
	DurationBuckets []float64 `yaml:"duration_buckets"`

	// MaxRuleLabels caps the number of distinct rule names used as metric
	// labels. Further rules are reported as "other".
	// Default: 1000
	MaxRuleLabels int `yaml:"max_rule_labels"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "verdict"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// Enabled controls whether health endpoints are served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the path for the liveness check endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness check endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`
}
