package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/verdict/pkg/cli"
	"mercator-hq/verdict/pkg/config"
	"mercator-hq/verdict/pkg/engine"
	"mercator-hq/verdict/pkg/history"
	"mercator-hq/verdict/pkg/secrets"
	"mercator-hq/verdict/pkg/source"
	"mercator-hq/verdict/pkg/telemetry/logging"
)

// loadConfig loads the configuration file, applies environment and flag
// overrides and validates the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}

	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
		if err := config.Validate(cfg); err != nil {
			return nil, cli.NewConfigError("telemetry.logging.level", err.Error())
		}
	}

	if err := resolveSecrets(context.Background(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveSecrets expands ${secret:name} references in credential fields.
// The resolver is only built when a field holds a reference.
func resolveSecrets(ctx context.Context, cfg *config.Config) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"rules.git.auth.token", &cfg.Rules.Git.Auth.Token},
		{"rules.git.auth.ssh_key_passphrase", &cfg.Rules.Git.Auth.SSHKeyPassphrase},
		{"history.dsn", &cfg.History.DSN},
	}

	var resolver *secrets.Resolver
	for _, f := range fields {
		if !secrets.HasReference(*f.value) {
			continue
		}
		if resolver == nil {
			providers := []secrets.Provider{secrets.NewEnvProvider(cfg.Secrets.EnvPrefix)}
			if cfg.Secrets.Dir != "" {
				files, err := secrets.NewFileProvider(cfg.Secrets.Dir)
				if err != nil {
					return cli.NewConfigError("secrets.dir", err.Error())
				}
				providers = append(providers, files)
			}
			resolver = secrets.NewResolver(nil, providers...)
		}

		value, err := resolver.Expand(ctx, *f.value)
		if err != nil {
			return cli.NewConfigError(f.name, err.Error())
		}
		*f.value = value
	}
	return nil
}

// newLogger builds the process logger. Logs go to w so that command
// output on stdout stays machine readable.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, w))
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	return logger, nil
}

// newSource creates the configured rule source.
func newSource(cfg *config.RulesConfig, logger *slog.Logger) (source.Source, error) {
	switch cfg.Mode {
	case "git":
		return source.NewGitSource(&source.GitConfig{
			Repository:   cfg.Git.Repository,
			Branch:       cfg.Git.Branch,
			Path:         cfg.Path,
			LocalPath:    cfg.Git.LocalPath,
			Depth:        cfg.Git.Depth,
			CleanOnStart: cfg.Git.CleanOnStart,
			Timeout:      cfg.Git.Timeout,
			Auth: source.AuthConfig{
				Type:             cfg.Git.Auth.Type,
				Token:            cfg.Git.Auth.Token,
				SSHKeyPath:       cfg.Git.Auth.SSHKeyPath,
				SSHKeyPassphrase: cfg.Git.Auth.SSHKeyPassphrase,
			},
		}, logger)
	case "file", "":
		return source.NewFileSource(cfg.Path, logger), nil
	default:
		return nil, cli.NewConfigError("rules.mode", fmt.Sprintf("unsupported mode %q", cfg.Mode))
	}
}

// compileOptions converts engine configuration into compile options.
// With strict actions, rule sets referencing unregistered action types
// fail to compile.
func compileOptions(cfg *config.EngineConfig, registry *engine.Registry) *engine.CompileOptions {
	opts := engine.DefaultCompileOptions().
		WithMaxDepth(cfg.MaxDepth).
		WithMaxRules(cfg.MaxRules)
	if cfg.StrictActions {
		opts.WithActions(registry)
	}
	return opts
}

// engineConfig converts engine configuration into run configuration.
func engineConfig(cfg *config.EngineConfig) (*engine.Config, error) {
	policy, err := engine.ParseOnActionError(cfg.OnActionError)
	if err != nil {
		return nil, cli.NewConfigError("engine.on_action_error", err.Error())
	}
	return engine.DefaultConfig().
		WithMaxCycles(cfg.MaxCycles).
		WithStopOnFirstMatch(cfg.StopOnFirstMatch).
		WithOnActionError(policy).
		WithTrace(cfg.EnableTrace), nil
}

// openHistoryStore opens the configured run history store. The SQL store
// is returned separately so callers can health check its connection; it
// is nil for the memory driver.
func openHistoryStore(ctx context.Context, cfg *config.HistoryConfig, logger *slog.Logger) (history.Store, *history.SQLStore, error) {
	if cfg.Driver == "memory" {
		return history.NewMemoryStore(), nil, nil
	}

	store, err := history.OpenSQLStore(ctx, &history.SQLConfig{
		Driver:       cfg.Driver,
		DSN:          cfg.DSN,
		MaxOpenConns: cfg.MaxOpenConns,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}

// commandContext returns the command's context, or a background context
// when the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
