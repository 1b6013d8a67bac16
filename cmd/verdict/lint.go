package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/verdict/pkg/cli"
	"mercator-hq/verdict/pkg/engine"
	rdlErrors "mercator-hq/verdict/pkg/rdl/errors"
	"mercator-hq/verdict/pkg/rdl/parser"
	"mercator-hq/verdict/pkg/source"
	"mercator-hq/verdict/pkg/telemetry/logging"
)

var lintFlags struct {
	file   string
	dir    string
	strict bool
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate rule files",
	Long: `Validate rule files for syntax and semantic errors.

The lint command parses every rule file and compiles its rules, reporting
all problems instead of stopping at the first:
  - YAML syntax and document structure
  - Unknown operators and fields, with suggestions
  - Invalid attribute paths, literals and patterns
  - Duplicate rule names
  - Unknown action types (with --strict)

Without --file or --dir, the rules path from the configuration is used.

Examples:
  # Lint single file
  verdict lint --file rules.yaml

  # Lint directory
  verdict lint --dir rules/

  # JSON output for CI/CD
  verdict lint --dir rules/ --format json`,
	RunE: lintRules,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.file, "file", "f", "", "rule file to validate")
	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of rule files")
	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "reject action types without a built-in handler")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

// LintResult is the validation result for a single rule file.
type LintResult struct {
	File   string        `json:"file"`
	Valid  bool          `json:"valid"`
	Rules  int           `json:"rules"`
	Errors []LintFinding `json:"errors,omitempty"`
}

// LintFinding is a single validation error.
type LintFinding struct {
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
	Rule       string `json:"rule,omitempty"`
	Node       string `json:"node,omitempty"`
	Message    string `json:"message"`
	Type       string `json:"type,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// LintReport is the output of the lint command.
type LintReport struct {
	Files  []LintResult `json:"files"`
	Errors int          `json:"errors"`
}

// Text renders the report for terminals.
func (r LintReport) Text() string {
	var sb strings.Builder
	for _, f := range r.Files {
		fmt.Fprintf(&sb, "Validating %s...\n", f.File)
		if f.Valid {
			fmt.Fprintf(&sb, "✓ %d rule(s) valid\n", f.Rules)
		}
		for _, e := range f.Errors {
			sb.WriteString("✗ Error: ")
			if e.Rule != "" {
				fmt.Fprintf(&sb, "rule %q: ", e.Rule)
			}
			sb.WriteString(e.Message)
			if e.Line > 0 {
				fmt.Fprintf(&sb, " (line %d", e.Line)
				if e.Column > 0 {
					fmt.Fprintf(&sb, ", col %d", e.Column)
				}
				sb.WriteString(")")
			}
			if e.Type != "" {
				fmt.Fprintf(&sb, " [%s]", e.Type)
			}
			sb.WriteString("\n")
			if e.Suggestion != "" {
				fmt.Fprintf(&sb, "  hint: %s\n", e.Suggestion)
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Summary:\n")
	fmt.Fprintf(&sb, "  %d file(s), %d error(s)\n", len(r.Files), r.Errors)
	return sb.String()
}

func lintRules(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(lintFlags.format)
	if err != nil {
		return err
	}

	files, err := lintFiles()
	if err != nil {
		return cli.NewCommandError("lint", err)
	}

	opts := engine.DefaultCompileOptions()
	if lintFlags.strict {
		opts.WithActions(engine.NewDefaultRegistry(logging.Discard()))
	}

	report := LintReport{Files: make([]LintResult, 0, len(files))}
	for _, file := range files {
		result := lintFile(file, opts)
		report.Errors += len(result.Errors)
		report.Files = append(report.Files, result)
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if report.Errors > 0 {
		return cli.NewCommandError("lint", &cli.ValidationError{Errors: report.Errors})
	}
	return nil
}

// lintFiles resolves the files to check from the flags or, failing that,
// from the configured rules path.
func lintFiles() ([]string, error) {
	var files []string
	if lintFlags.file != "" {
		files = append(files, lintFlags.file)
	}
	if lintFlags.dir != "" {
		matches, err := source.ListRuleFiles(lintFlags.dir)
		if err != nil {
			return nil, fmt.Errorf("failed to list rule files: %w", err)
		}
		files = append(files, matches...)
	}

	if lintFlags.file == "" && lintFlags.dir == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(cfg.Rules.Path)
		if err != nil {
			return nil, fmt.Errorf("rules path: %w", err)
		}
		if !info.IsDir() {
			return []string{cfg.Rules.Path}, nil
		}
		if files, err = source.ListRuleFiles(cfg.Rules.Path); err != nil {
			return nil, fmt.Errorf("failed to list rule files: %w", err)
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no rule files found")
	}
	return files, nil
}

func lintFile(path string, opts *engine.CompileOptions) LintResult {
	result := LintResult{File: path, Valid: true}

	doc, err := parser.Parse(path)
	if err != nil {
		result.Valid = false
		result.Errors = parseFindings(err)
		return result
	}
	result.Rules = len(doc.Rules)

	for _, err := range engine.Validate(doc.Rules, opts) {
		result.Valid = false
		result.Errors = append(result.Errors, compileFinding(err))
	}
	return result
}

func parseFindings(err error) []LintFinding {
	var list *rdlErrors.ErrorList
	var single *rdlErrors.Error
	switch {
	case errors.As(err, &list):
		out := make([]LintFinding, 0, list.Len())
		for _, e := range list.Errors {
			out = append(out, rdlFinding(e))
		}
		return out
	case errors.As(err, &single):
		return []LintFinding{rdlFinding(single)}
	default:
		return []LintFinding{{Message: err.Error()}}
	}
}

func rdlFinding(e *rdlErrors.Error) LintFinding {
	return LintFinding{
		Line:       e.Location.Line,
		Column:     e.Location.Column,
		Message:    e.Message,
		Type:       string(e.Kind),
		Suggestion: e.Hint,
	}
}

func compileFinding(err error) LintFinding {
	var ce *engine.CompileError
	if !errors.As(err, &ce) {
		return LintFinding{Message: err.Error()}
	}
	msg := ce.Message
	if ce.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, ce.Cause)
	}
	return LintFinding{
		Line:    ce.Location.Line,
		Column:  ce.Location.Column,
		Rule:    ce.Rule,
		Node:    ce.Node,
		Message: msg,
		Type:    "compile",
	}
}
