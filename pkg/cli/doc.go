/*
Package cli provides helpers shared by the verdict commands.

Output Formatting:

Commands print results as text or JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Errors and Exit Codes:

ConfigError and ValidationError map to distinct exit codes through
ExitCode, so scripts can tell a broken configuration from invalid rules.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
