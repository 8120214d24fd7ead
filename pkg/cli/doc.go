/*
Package cli provides command-line helpers used by the hc-http-gw command.

Output Formatting:

Command results such as the effective configuration can be printed as text,
JSON or YAML:

	formatter := cli.NewFormatter(cli.FormatYAML)
	if err := formatter.FormatTo(os.Stdout, cfg); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

Errors:

ConfigError and CommandError classify command failures; ExitCode maps them to
the process exit status (2 for configuration problems, 1 otherwise).
*/
package cli
