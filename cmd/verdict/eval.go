package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/verdict/pkg/cli"
	"mercator-hq/verdict/pkg/engine"
	"mercator-hq/verdict/pkg/facts"
	"mercator-hq/verdict/pkg/history"
	"mercator-hq/verdict/pkg/reload"
	"mercator-hq/verdict/pkg/source"
)

var evalFlags struct {
	rules            string
	facts            string
	maxCycles        int
	stopOnFirstMatch bool
	onActionError    string
	trace            bool
	format           string
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate rules against one fact document",
	Long: `Evaluate a rule set against a single JSON or YAML fact document and print
the run report together with the resulting facts.

Rules come from --rules, or from the configured rule source. Engine flags
override the configuration for this run. When history is enabled in the
configuration the run is recorded.

Examples:
  # Evaluate a fact file
  verdict eval --rules rules/ --facts order.json

  # Read facts from stdin, allow rules to re-trigger
  echo '{"age": 20}' | verdict eval --rules rules.yaml --facts - --max-cycles 10

  # Include the per-cycle trace
  verdict eval --rules rules/ --facts order.yaml --trace`,
	RunE: evalFacts,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringVarP(&evalFlags.rules, "rules", "r", "", "rule file or directory (default: configured rule source)")
	evalCmd.Flags().StringVarP(&evalFlags.facts, "facts", "f", "-", "fact document, - for stdin")
	evalCmd.Flags().IntVar(&evalFlags.maxCycles, "max-cycles", 0, "override engine.max_cycles")
	evalCmd.Flags().BoolVar(&evalFlags.stopOnFirstMatch, "stop-on-first-match", false, "fire only the highest ranked matching rule")
	evalCmd.Flags().StringVar(&evalFlags.onActionError, "on-action-error", "", "override engine.on_action_error (continue-rule, abort-cycle, abort-run)")
	evalCmd.Flags().BoolVar(&evalFlags.trace, "trace", false, "include the evaluation trace")
	evalCmd.Flags().StringVar(&evalFlags.format, "format", "json", "output format: json, text")
}

// EvalResult is the outcome of evaluating one fact document.
type EvalResult struct {
	Report       *engine.Report `json:"report,omitempty"`
	ActionErrors []string       `json:"action_errors,omitempty"`
	Facts        map[string]any `json:"facts"`
	Error        string         `json:"error,omitempty"`
}

// Text renders the result for terminals.
func (r EvalResult) Text() string {
	var sb strings.Builder
	if r.Report != nil {
		fmt.Fprintf(&sb, "Run %s (%s)\n", r.Report.RunID, r.Report.RuleSetVersion)
		fmt.Fprintf(&sb, "  terminal: %s after %d cycle(s)\n", r.Report.Terminal, r.Report.Cycles)
		for _, f := range r.Report.Fired {
			status := "✓"
			if f.Failed {
				status = "✗"
			}
			fmt.Fprintf(&sb, "  %s cycle %d: %s (priority %d, %d action(s))\n", status, f.Cycle, f.Rule, f.Priority, f.ActionsExecuted)
		}
	}
	for _, msg := range r.ActionErrors {
		fmt.Fprintf(&sb, "  action error: %s\n", msg)
	}
	if r.Error != "" {
		fmt.Fprintf(&sb, "  error: %s\n", r.Error)
	}
	if fc, err := facts.FromMap(r.Facts); err == nil {
		fmt.Fprintf(&sb, "Facts: %s\n", fc)
	}
	return sb.String()
}

func evalFacts(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(evalFlags.format)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	runCfg, err := engineConfig(&cfg.Engine)
	if err != nil {
		return err
	}
	if evalFlags.maxCycles > 0 {
		runCfg.WithMaxCycles(evalFlags.maxCycles)
	}
	if evalFlags.stopOnFirstMatch {
		runCfg.WithStopOnFirstMatch(true)
	}
	if evalFlags.onActionError != "" {
		policy, err := engine.ParseOnActionError(evalFlags.onActionError)
		if err != nil {
			return err
		}
		runCfg.WithOnActionError(policy)
	}
	if evalFlags.trace {
		runCfg.WithTrace(true)
	}

	fc, err := readFacts(cmd.InOrStdin(), evalFlags.facts)
	if err != nil {
		return cli.NewCommandError("eval", err)
	}

	ctx := commandContext(cmd)

	var src source.Source
	if evalFlags.rules != "" {
		src = source.NewFileSource(evalFlags.rules, logger)
	} else if src, err = newSource(&cfg.Rules, logger); err != nil {
		return err
	}

	registry := engine.NewDefaultRegistry(logger)
	manager, err := reload.NewManager(src, compileOptions(&cfg.Engine, registry), logger)
	if err != nil {
		return err
	}
	if err := manager.Reload(ctx); err != nil {
		return cli.NewCommandError("eval", err)
	}

	eng := engine.NewEngine(registry, logger)
	if cfg.History.Enabled {
		store, _, err := openHistoryStore(ctx, &cfg.History, logger)
		if err != nil {
			return cli.NewCommandError("eval", err)
		}
		defer store.Close()

		recorder := history.NewRecorder(store, &history.RecorderConfig{
			AsyncBuffer:  1,
			WriteTimeout: cfg.History.Recorder.WriteTimeout,
		}, logger)
		// Close drains the queue, so the run is stored before exit.
		defer recorder.Close()
		eng.WithObserver(recorder)
	}

	result := evaluateOne(ctx, manager, eng, fc, runCfg, cfg.Engine.Timeout)
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if result.Error != "" {
		return cli.NewCommandError("eval", fmt.Errorf("%s", result.Error))
	}
	return nil
}

// evaluateOne runs the current rule set against fc and packages the
// outcome.
func evaluateOne(ctx context.Context, manager *reload.Manager, eng *engine.Engine, fc *facts.Context, runCfg *engine.Config, timeout time.Duration) EvalResult {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	report, err := manager.Evaluate(ctx, eng, fc, runCfg)

	result := EvalResult{Report: report, Facts: fc.ToMap()}
	if report != nil {
		result.ActionErrors = report.ActionErrorMessages()
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func readFacts(stdin io.Reader, path string) (*facts.Context, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read facts: %w", err)
	}
	return facts.Decode(data)
}
