package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/verdict/pkg/cli"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "verdict",
	Short: "Verdict - forward-chaining rule engine",
	Long: `Verdict evaluates declarative rule sets against facts.

Rules are YAML documents. Each rule pairs a condition over fact attributes
with actions that update the facts. Rules that match in the same cycle fire
by priority, then by declaration order, and a run repeats the cycle until
no rule fires or the cycle limit is reached.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults plus VERDICT_* environment when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}
