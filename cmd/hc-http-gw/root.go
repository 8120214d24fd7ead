package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hchttp/gateway/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "hc-http-gw",
	Short: "HTTP gateway for Holochain conductors",
	Long: `hc-http-gw serves zome calls of a Holochain conductor over plain HTTP.

Each request names a DNA hash, an installed app, a zome and a function:

  GET /{dna_hash}/{app_id}/{zome}/{fn}?payload={base64url json}

Only apps listed in HC_GW_ALLOWED_APP_IDS, and only the functions listed in
HC_GW_ALLOWED_FNS_<app_id>, can be called. The gateway signs calls with
credentials it provisions on the conductor at first use.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (environment only when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
