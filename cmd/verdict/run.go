package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"sync"

	"github.com/spf13/cobra"

	"mercator-hq/verdict/pkg/cli"
	"mercator-hq/verdict/pkg/config"
	"mercator-hq/verdict/pkg/engine"
	"mercator-hq/verdict/pkg/facts"
	"mercator-hq/verdict/pkg/history"
	"mercator-hq/verdict/pkg/reload"
	"mercator-hq/verdict/pkg/server"
	"mercator-hq/verdict/pkg/telemetry/health"
	"mercator-hq/verdict/pkg/telemetry/logging"
	"mercator-hq/verdict/pkg/telemetry/metrics"
	"mercator-hq/verdict/pkg/telemetry/tracing"
)

var runFlags struct {
	input     string
	listen    string
	keepAlive bool
	dryRun    bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate a stream of facts",
	Long: `Evaluate every fact document of a JSON Lines stream against the configured
rule set and print one JSON result per line.

While running, the rule set is reloaded on file changes (rules.watch) and on
the reload schedule, runs are recorded to the history store, and metrics and
health endpoints are served on telemetry.metrics.listen_address.

A failed reload keeps the previous rule set. A malformed input line produces
an error result and processing continues.

Examples:
  # Evaluate a file of fact documents
  verdict run --config verdict.yaml --input facts.jsonl

  # Evaluate stdin and keep serving metrics and reloads after EOF
  tail -f events.jsonl | verdict run --config verdict.yaml

  # Validate configuration and rules without evaluating
  verdict run --config verdict.yaml --dry-run`,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.input, "input", "i", "-", "JSON Lines fact input, - for stdin")
	runCmd.Flags().StringVarP(&runFlags.listen, "listen", "l", "", "override telemetry.metrics.listen_address")
	runCmd.Flags().BoolVar(&runFlags.keepAlive, "keep-alive", false, "keep running after the input ends until interrupted")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "load configuration and rules, then exit")
}

// LineResult is the output for one input line.
type LineResult struct {
	Line int `json:"line"`
	EvalResult
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.listen != "" {
		cfg.Telemetry.Metrics.ListenAddress = runFlags.listen
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := cli.SetupSignalHandler(commandContext(cmd))
	defer stop()

	rt, err := newService(ctx, cfg, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer rt.close()

	logger.Info("rule set loaded",
		"source", rt.manager.Source().Name(),
		"version", rt.manager.Current().Version(),
		"rules", rt.manager.Current().Len(),
	)
	if runFlags.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid\n✓ Rule set %s loaded (%d rules)\n",
			rt.manager.Current().Version(), rt.manager.Current().Len())
		return nil
	}

	rt.startBackground(ctx)

	input, err := openInput(cmd.InOrStdin(), runFlags.input)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer input.Close()

	done := make(chan error, 1)
	go func() {
		done <- rt.process(ctx, input, cmd.OutOrStdout())
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return cli.NewCommandError("run", err)
		}
		if runFlags.keepAlive {
			logger.Info("input finished, waiting for shutdown signal")
			<-ctx.Done()
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}
	return nil
}

// service holds the long-lived components of the run command.
type service struct {
	cfg    *config.Config
	logger *slog.Logger

	manager  *reload.Manager
	engine   *engine.Engine
	runCfg   *engine.Config
	tracer   *tracing.Tracer
	recorder *history.Recorder
	pruner   *history.Pruner
	store    history.Store
	server   *server.Server

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closers []func()
}

func newService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *service, err error) {
	rt := &service{cfg: cfg, logger: logger}
	// Error returns are nil; release what was started so far.
	defer func() {
		if err != nil {
			rt.close()
		}
	}()

	if rt.runCfg, err = engineConfig(&cfg.Engine); err != nil {
		return nil, err
	}

	rt.tracer, err = tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	rt.closers = append(rt.closers, func() {
		if err := rt.tracer.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	})

	registry := engine.NewDefaultRegistry(logger)
	rt.engine = engine.NewEngine(registry, logger).WithTracer(rt.tracer.Tracer())

	src, err := newSource(&cfg.Rules, logger)
	if err != nil {
		return nil, err
	}
	if rt.manager, err = reload.NewManager(src, compileOptions(&cfg.Engine, registry), logger); err != nil {
		return nil, err
	}
	rt.manager.WithTracer(rt.tracer.Tracer())

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
		rt.engine.WithObserver(collector)
		rt.manager.AddListener(collector)
	}

	if err := rt.manager.Reload(ctx); err != nil {
		return nil, fmt.Errorf("initial rule load failed: %w", err)
	}

	checker := health.New(0)
	checker.RegisterCheck("rules", health.RuleSetCheck(rt.manager))

	if cfg.History.Enabled {
		store, sqlStore, err := openHistoryStore(ctx, &cfg.History, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open history store: %w", err)
		}
		rt.store = store
		rt.closers = append(rt.closers, func() { _ = store.Close() })
		if sqlStore != nil {
			checker.RegisterCheck("history", health.PingCheck(sqlStore.DB()))
		}

		rt.recorder = history.NewRecorder(store, &history.RecorderConfig{
			AsyncBuffer:  cfg.History.Recorder.AsyncBuffer,
			WriteTimeout: cfg.History.Recorder.WriteTimeout,
		}, logger)
		rt.closers = append(rt.closers, func() { _ = rt.recorder.Close() })
		rt.engine.WithObserver(rt.recorder)
		if collector != nil {
			if err := collector.RegisterRecorder(rt.recorder); err != nil {
				return nil, err
			}
		}

		rt.pruner = history.NewPruner(store, &history.PrunerConfig{
			MaxAge:   cfg.History.Retention.MaxAge,
			MaxRuns:  cfg.History.Retention.MaxRuns,
			Schedule: cfg.History.Retention.Schedule,
		}, logger)
	}

	if collector != nil || cfg.Telemetry.Health.Enabled {
		mux := http.NewServeMux()
		if collector != nil {
			mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
		}
		if cfg.Telemetry.Health.Enabled {
			health.Register(mux, checker, &cfg.Telemetry.Health, health.VersionInfo{
				Version:   Version,
				Commit:    GitCommit,
				BuildTime: BuildDate,
				GoVersion: runtime.Version(),
			})
		}
		rt.server = server.NewServer(server.Config{ListenAddress: cfg.Telemetry.Metrics.ListenAddress}, mux, logger)
	}

	return rt, nil
}

// startBackground starts the telemetry server, file watching, scheduled
// reloads and history pruning. They stop when ctx is cancelled.
func (rt *service) startBackground(ctx context.Context) {
	ctx, rt.cancel = context.WithCancel(ctx)

	if rt.server != nil {
		rt.goBackground("telemetry server", func() error { return rt.server.Start(ctx) })
	}

	if rt.cfg.Rules.Watch.Enabled {
		watchCfg := reload.DefaultWatcherConfig()
		if rt.cfg.Rules.Watch.DebounceInterval > 0 {
			watchCfg.DebounceInterval = rt.cfg.Rules.Watch.DebounceInterval
		}
		rt.goBackground("rule watcher", func() error { return rt.manager.Watch(ctx, watchCfg) })
	}

	if rt.cfg.Rules.ReloadSchedule != "" {
		scheduler := reload.NewScheduler(rt.manager, rt.cfg.Rules.ReloadSchedule, rt.logger)
		if err := scheduler.Start(ctx); err != nil {
			rt.logger.Error("failed to start reload scheduler", "error", err)
		} else {
			rt.closers = append(rt.closers, scheduler.Stop)
		}
	}

	if rt.pruner != nil {
		if err := rt.pruner.Start(ctx); err != nil {
			rt.logger.Error("failed to start history pruner", "error", err)
		} else {
			rt.closers = append(rt.closers, rt.pruner.Stop)
			if next := rt.pruner.NextPruning(); next != nil {
				rt.logger.Debug("history pruner started", "next_pruning", next)
			}
		}
	}
}

func (rt *service) goBackground(name string, fn func() error) {
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
			rt.logger.Error("background task failed", "task", name, "error", err)
		}
	}()
}

// process evaluates every line of r and writes one JSON result per line
// to w. It returns when r is exhausted or ctx is cancelled.
func (rt *service) process(ctx context.Context, r io.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)

	return facts.DecodeLines(r, func(line int, fc *facts.Context, decodeErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		var result LineResult
		result.Line = line
		if decodeErr != nil {
			rt.logger.Warn("skipping malformed input line", "line", line, "error", decodeErr)
			result.Error = decodeErr.Error()
			result.Facts = map[string]any{}
		} else {
			runCtx := logging.WithRuleSetVersion(ctx, rt.manager.Current().Version())
			result.EvalResult = evaluateOne(runCtx, rt.manager, rt.engine, fc, rt.runCfg, rt.cfg.Engine.Timeout)
		}
		return enc.Encode(result)
	})
}

// close cancels background tasks, stops components in reverse start order
// and waits for the tasks to return.
func (rt *service) close() {
	if rt.cancel != nil {
		rt.cancel()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
	rt.wg.Wait()
}

func openInput(stdin io.Reader, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}
