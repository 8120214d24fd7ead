package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hchttp/gateway/pkg/cli"
	"hchttp/gateway/pkg/config"
)

var configFlags struct {
	format string
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect gateway configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration file (if any) and HC_GW_* environment variables,
apply defaults and report every problem found.

Examples:
  # Validate environment-only configuration
  HC_GW_ADMIN_WS_URL=ws://localhost:8888 hc-http-gw config validate

  # Validate a file
  hc-http-gw config validate --config config.yaml`,
	RunE: validateConfig,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults and environment overrides.

Examples:
  hc-http-gw config show --config config.yaml --format json`,
	RunE: showConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd, configShowCmd)

	configShowCmd.Flags().StringVarP(&configFlags.format, "format", "f", "yaml", "output format: yaml, json")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	return cfg, nil
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✓ Configuration valid")
	fmt.Fprintf(out, "  conductor: %s\n", cfg.Conductor.AdminWSURL)
	fmt.Fprintf(out, "  listen:    %s\n", cfg.Gateway.ListenAddress())
	fmt.Fprintf(out, "  apps:      %d allowed\n", len(cfg.Apps.AllowedAppIDs))
	return nil
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	format := cli.OutputFormat(configFlags.format)
	if format != cli.FormatYAML && format != cli.FormatJSON {
		return cli.NewCommandError("config show", fmt.Errorf("unsupported format %q", configFlags.format))
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), cfg)
}
