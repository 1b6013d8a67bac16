package config

import "time"

// Default values for configuration fields.
const (
	// Engine defaults
	DefaultMaxCycles     = 1
	DefaultOnActionError = "continue-rule"
	DefaultRunTimeout    = 5 * time.Second
	DefaultMaxDepth      = 10
	DefaultMaxRules      = 10000
	DefaultStrictActions = true

	// Rules defaults
	DefaultRulesMode             = "file"
	DefaultRulesPath             = "./rules"
	DefaultGitBranch             = "main"
	DefaultGitLocalPath          = "data/rules-repo"
	DefaultGitDepth              = 1
	DefaultGitTimeout            = 30 * time.Second
	DefaultGitAuthType           = "none"
	DefaultWatchDebounceInterval = 250 * time.Millisecond

	// History defaults
	DefaultHistoryEnabled           = false
	DefaultHistoryDriver            = "sqlite"
	DefaultHistoryDSN               = "data/history.db"
	DefaultHistoryRecorderBuffer    = 1000
	DefaultHistoryRecorderTimeout   = 5 * time.Second
	DefaultHistoryRetentionMaxAge   = 30 * 24 * time.Hour
	DefaultHistoryRetentionSchedule = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "json"
	DefaultMetricsEnabled       = true
	DefaultMetricsListenAddress = "127.0.0.1:9090"
	DefaultMetricsPath          = "/metrics"
	DefaultMetricsNamespace     = "verdict"
	DefaultMetricsSubsystem     = "engine"
	DefaultMetricsMaxRuleLabels = 1000
	DefaultTracingSampler       = "ratio"
	DefaultTracingSampleRatio   = 0.1
	DefaultTracingEndpoint      = "localhost:4317"
	DefaultTracingServiceName   = "verdict"
	DefaultOTLPInsecure         = true
	DefaultOTLPTimeout          = 10 * time.Second
	DefaultHealthEnabled        = true
	DefaultLivenessPath         = "/health"
	DefaultReadinessPath        = "/ready"

	// Secrets defaults
	DefaultSecretsEnvPrefix = "VERDICT_SECRET_"
)

// DefaultDurationBuckets covers runs from 10µs to about 160ms.
var DefaultDurationBuckets = []float64{
	0.00001, 0.00002, 0.00005, 0.0001, 0.0002, 0.0005,
	0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.16,
}

// Default returns a configuration with every field set to its default.
// LoadConfig decodes YAML on top of it, so boolean fields that default to
// true can still be switched off explicitly.
func Default() *Config {
	cfg := &Config{
		Engine: EngineConfig{
			StrictActions: DefaultStrictActions,
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{OTLP: OTLPConfig{Insecure: DefaultOTLPInsecure}},
			Health:  HealthConfig{Enabled: DefaultHealthEnabled},
		},
		History: HistoryConfig{Enabled: DefaultHistoryEnabled},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for any fields that have zero values.
// It is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Engine defaults
	if cfg.Engine.MaxCycles == 0 {
		cfg.Engine.MaxCycles = DefaultMaxCycles
	}
	if cfg.Engine.OnActionError == "" {
		cfg.Engine.OnActionError = DefaultOnActionError
	}
	if cfg.Engine.Timeout == 0 {
		cfg.Engine.Timeout = DefaultRunTimeout
	}
	if cfg.Engine.MaxDepth == 0 {
		cfg.Engine.MaxDepth = DefaultMaxDepth
	}
	if cfg.Engine.MaxRules == 0 {
		cfg.Engine.MaxRules = DefaultMaxRules
	}

	// Rules defaults
	if cfg.Rules.Mode == "" {
		cfg.Rules.Mode = DefaultRulesMode
	}
	if cfg.Rules.Path == "" && cfg.Rules.Mode == DefaultRulesMode {
		cfg.Rules.Path = DefaultRulesPath
	}
	if cfg.Rules.Git.Branch == "" {
		cfg.Rules.Git.Branch = DefaultGitBranch
	}
	if cfg.Rules.Git.LocalPath == "" {
		cfg.Rules.Git.LocalPath = DefaultGitLocalPath
	}
	if cfg.Rules.Git.Depth == 0 {
		cfg.Rules.Git.Depth = DefaultGitDepth
	}
	if cfg.Rules.Git.Timeout == 0 {
		cfg.Rules.Git.Timeout = DefaultGitTimeout
	}
	if cfg.Rules.Git.Auth.Type == "" {
		cfg.Rules.Git.Auth.Type = DefaultGitAuthType
	}
	if cfg.Rules.Watch.DebounceInterval == 0 {
		cfg.Rules.Watch.DebounceInterval = DefaultWatchDebounceInterval
	}

	// History defaults
	if cfg.History.Driver == "" {
		cfg.History.Driver = DefaultHistoryDriver
	}
	if cfg.History.DSN == "" && cfg.History.Driver != "memory" && cfg.History.Driver != "postgres" {
		cfg.History.DSN = DefaultHistoryDSN
	}
	if cfg.History.Recorder.AsyncBuffer == 0 {
		cfg.History.Recorder.AsyncBuffer = DefaultHistoryRecorderBuffer
	}
	if cfg.History.Recorder.WriteTimeout == 0 {
		cfg.History.Recorder.WriteTimeout = DefaultHistoryRecorderTimeout
	}
	if cfg.History.Retention.MaxAge == 0 {
		cfg.History.Retention.MaxAge = DefaultHistoryRetentionMaxAge
	}
	if cfg.History.Retention.Schedule == "" {
		cfg.History.Retention.Schedule = DefaultHistoryRetentionSchedule
	}

	applyTelemetryDefaults(&cfg.Telemetry)

	if cfg.Secrets.EnvPrefix == "" {
		cfg.Secrets.EnvPrefix = DefaultSecretsEnvPrefix
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}

	if t.Metrics.ListenAddress == "" {
		t.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Metrics.Subsystem == "" {
		t.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(t.Metrics.DurationBuckets) == 0 {
		t.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
	if t.Metrics.MaxRuleLabels == 0 {
		t.Metrics.MaxRuleLabels = DefaultMetricsMaxRuleLabels
	}

	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.Endpoint == "" {
		t.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}
	if t.Tracing.OTLP.Timeout == 0 {
		t.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}

	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultReadinessPath
	}
}
