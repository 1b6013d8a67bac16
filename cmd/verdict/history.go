package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/verdict/pkg/cli"
	"mercator-hq/verdict/pkg/config"
	"mercator-hq/verdict/pkg/history"
)

var historyFlags struct {
	driver string
	dsn    string

	since    string
	until    string
	terminal string
	version  string
	limit    int
	offset   int
	format   string

	maxAge  time.Duration
	maxRuns int64

	output string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and maintain the run history",
	Long: `Inspect and maintain the run history recorded by 'verdict run' and
'verdict eval'.

The store is taken from the history section of the configuration;
--driver and --dsn override it.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	Long: `List recorded runs, newest first.

--since and --until accept an RFC 3339 timestamp or a duration relative to
now (e.g. 24h).

Examples:
  verdict history list --since 1h
  verdict history list --terminal cycle-limit --format json`,
	RunE: listHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE:  showHistory,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old runs",
	Long: `Delete runs older than --max-age and beyond the newest --max-runs.
Flags default to the retention configuration.

Examples:
  verdict history prune --max-age 720h
  verdict history prune --max-runs 10000`,
	RunE: pruneHistory,
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded runs as JSON or CSV",
	Long: `Export recorded runs as JSON or CSV. The list filters apply.

Examples:
  verdict history export --format csv --output runs.csv
  verdict history export --since 2026-01-01T00:00:00Z`,
	RunE: exportHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyPruneCmd, historyExportCmd)

	historyCmd.PersistentFlags().StringVar(&historyFlags.driver, "driver", "", "override history.driver (sqlite, sqlite3, postgres)")
	historyCmd.PersistentFlags().StringVar(&historyFlags.dsn, "dsn", "", "override history.dsn")

	for _, cmd := range []*cobra.Command{historyListCmd, historyExportCmd} {
		cmd.Flags().StringVar(&historyFlags.since, "since", "", "only runs started at or after this time")
		cmd.Flags().StringVar(&historyFlags.until, "until", "", "only runs started before this time")
		cmd.Flags().StringVar(&historyFlags.terminal, "terminal", "", "only runs with this terminal reason")
		cmd.Flags().StringVar(&historyFlags.version, "rule-set-version", "", "only runs of this rule set version")
		cmd.Flags().IntVar(&historyFlags.limit, "limit", 0, "maximum number of runs (0 = no limit)")
		cmd.Flags().IntVar(&historyFlags.offset, "offset", 0, "skip the newest N runs")
	}
	historyListCmd.Flags().StringVar(&historyFlags.format, "format", "text", "output format: text, json")
	historyShowCmd.Flags().StringVar(&historyFlags.format, "format", "text", "output format: text, json")
	historyExportCmd.Flags().StringVar(&historyFlags.format, "format", history.FormatJSON, "export format: json, csv")
	historyExportCmd.Flags().StringVarP(&historyFlags.output, "output", "o", "", "output file (default: stdout)")

	historyPruneCmd.Flags().DurationVar(&historyFlags.maxAge, "max-age", 0, "delete runs older than this (default: history.retention.max_age)")
	historyPruneCmd.Flags().Int64Var(&historyFlags.maxRuns, "max-runs", 0, "keep at most this many runs (default: history.retention.max_runs)")
}

// RunList is a page of runs with the total number of matches.
type RunList struct {
	Runs  []*history.Run `json:"runs"`
	Total int64          `json:"total"`
}

// Text renders the list as a table.
func (l RunList) Text() string {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tSTARTED\tVERSION\tTERMINAL\tCYCLES\tFIRED\tERRORS")
	for _, run := range l.Runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			run.ID,
			run.StartedAt.Format(time.RFC3339),
			shortVersion(run.RuleSetVersion),
			run.Terminal,
			run.Cycles,
			len(run.Fired),
			len(run.ActionErrors),
		)
	}
	tw.Flush()
	fmt.Fprintf(&sb, "\n%d of %d run(s)\n", len(l.Runs), l.Total)
	return sb.String()
}

// RunDetail is a single run.
type RunDetail struct {
	*history.Run
}

// Text renders the run with its firings.
func (d RunDetail) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run:        %s\n", d.ID)
	fmt.Fprintf(&sb, "Rule set:   %s\n", d.RuleSetVersion)
	fmt.Fprintf(&sb, "Started:    %s\n", d.StartedAt.Format(time.RFC3339Nano))
	fmt.Fprintf(&sb, "Duration:   %s\n", d.Duration)
	fmt.Fprintf(&sb, "Terminal:   %s after %d cycle(s)\n", d.Terminal, d.Cycles)
	if len(d.Fired) > 0 {
		sb.WriteString("Fired:\n")
		for _, f := range d.Fired {
			fmt.Fprintf(&sb, "  cycle %d: %s (priority %d, %d action(s))", f.Cycle, f.Rule, f.Priority, f.ActionsExecuted)
			if f.Failed {
				sb.WriteString(" failed")
			}
			sb.WriteString("\n")
		}
	}
	for _, msg := range d.ActionErrors {
		fmt.Fprintf(&sb, "Action error: %s\n", msg)
	}
	if d.Error != "" {
		fmt.Fprintf(&sb, "Error:      %s\n", d.Error)
	}
	return sb.String()
}

// PruneResult reports a prune operation.
type PruneResult struct {
	Deleted   int64 `json:"deleted"`
	Remaining int64 `json:"remaining"`
}

// Text renders the prune result.
func (r PruneResult) Text() string {
	return fmt.Sprintf("✓ Deleted %d run(s), %d remaining\n", r.Deleted, r.Remaining)
}

func listHistory(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(historyFlags.format)
	if err != nil {
		return err
	}
	query, err := historyQuery(time.Now())
	if err != nil {
		return err
	}

	return withHistoryStore(cmd, func(ctx context.Context, store history.Store, hc *historyContext) error {
		runs, err := store.List(ctx, query)
		if err != nil {
			return err
		}
		total, err := store.Count(ctx, query)
		if err != nil {
			return err
		}
		if runs == nil {
			runs = []*history.Run{}
		}
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), RunList{Runs: runs, Total: total})
	})
}

func showHistory(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(historyFlags.format)
	if err != nil {
		return err
	}

	return withHistoryStore(cmd, func(ctx context.Context, store history.Store, hc *historyContext) error {
		run, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if format == cli.FormatJSON {
			return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), run)
		}
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), RunDetail{Run: run})
	})
}

func pruneHistory(cmd *cobra.Command, args []string) error {
	return withHistoryStore(cmd, func(ctx context.Context, store history.Store, hc *historyContext) error {
		retention := hc.config.Retention
		if cmd.Flags().Changed("max-age") {
			retention.MaxAge = historyFlags.maxAge
		}
		if cmd.Flags().Changed("max-runs") {
			retention.MaxRuns = historyFlags.maxRuns
		}
		if retention.MaxAge < 0 || retention.MaxRuns < 0 {
			return cli.NewConfigError("history.retention", "limits must not be negative")
		}
		if retention.MaxAge == 0 && retention.MaxRuns == 0 {
			return cli.NewConfigError("history.retention", "no retention limit set, use --max-age or --max-runs")
		}

		pruner := history.NewPruner(store, &history.PrunerConfig{
			MaxAge:  retention.MaxAge,
			MaxRuns: retention.MaxRuns,
		}, hc.logger)
		deleted, err := pruner.Prune(ctx)
		if err != nil {
			return err
		}
		remaining, err := store.Count(ctx, &history.Query{})
		if err != nil {
			return err
		}
		return cli.NewFormatter(cli.FormatText).FormatTo(cmd.OutOrStdout(), PruneResult{Deleted: deleted, Remaining: remaining})
	})
}

func exportHistory(cmd *cobra.Command, args []string) error {
	switch historyFlags.format {
	case history.FormatJSON, history.FormatCSV:
	default:
		return cli.NewConfigError("format", fmt.Sprintf("unsupported export format %q", historyFlags.format))
	}
	query, err := historyQuery(time.Now())
	if err != nil {
		return err
	}

	return withHistoryStore(cmd, func(ctx context.Context, store history.Store, hc *historyContext) error {
		runs, err := store.List(ctx, query)
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if historyFlags.output != "" {
			f, err := os.Create(historyFlags.output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := history.Export(w, runs, historyFlags.format); err != nil {
			return err
		}
		if historyFlags.output != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d run(s) to %s\n", len(runs), historyFlags.output)
		}
		return nil
	})
}

// historyContext carries the resolved configuration of a history
// subcommand.
type historyContext struct {
	config *config.HistoryConfig
	logger *slog.Logger
}

// withHistoryStore opens the configured store, runs fn and closes the
// store. Errors from fn are wrapped as command errors.
func withHistoryStore(cmd *cobra.Command, fn func(ctx context.Context, store history.Store, hc *historyContext) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if historyFlags.driver != "" {
		cfg.History.Driver = historyFlags.driver
	}
	if historyFlags.dsn != "" {
		cfg.History.DSN = historyFlags.dsn
		if err := resolveSecrets(commandContext(cmd), cfg); err != nil {
			return err
		}
	}
	if cfg.History.Driver == "memory" {
		return cli.NewConfigError("history.driver", "history commands need a persistent driver (sqlite, sqlite3, postgres)")
	}
	if cfg.History.DSN == "" {
		return cli.NewConfigError("history.dsn", "field is required")
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	store, _, err := openHistoryStore(ctx, &cfg.History, logger)
	if err != nil {
		return cli.NewCommandError(cmd.CommandPath(), err)
	}
	defer store.Close()

	if err := fn(ctx, store, &historyContext{config: &cfg.History, logger: logger}); err != nil {
		return cli.NewCommandError(cmd.CommandPath(), err)
	}
	return nil
}

// historyQuery builds the list filter from flags.
func historyQuery(now time.Time) (*history.Query, error) {
	if historyFlags.limit < 0 || historyFlags.offset < 0 {
		return nil, cli.NewConfigError("limit", "limit and offset must not be negative")
	}
	query := &history.Query{
		Terminal:       historyFlags.terminal,
		RuleSetVersion: historyFlags.version,
		Limit:          historyFlags.limit,
		Offset:         historyFlags.offset,
	}
	if historyFlags.since != "" {
		t, err := parseTimeFlag(historyFlags.since, now)
		if err != nil {
			return nil, cli.NewConfigError("since", err.Error())
		}
		query.Since = &t
	}
	if historyFlags.until != "" {
		t, err := parseTimeFlag(historyFlags.until, now)
		if err != nil {
			return nil, cli.NewConfigError("until", err.Error())
		}
		query.Until = &t
	}
	return query, nil
}

// parseTimeFlag accepts an RFC 3339 timestamp or a duration before now.
func parseTimeFlag(value string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or a duration such as 24h", value)
	}
	if d < 0 {
		return time.Time{}, fmt.Errorf("invalid time %q: duration must not be negative", value)
	}
	return now.Add(-d), nil
}

func shortVersion(v string) string {
	if len(v) > 12 {
		return v[:12]
	}
	return v
}
