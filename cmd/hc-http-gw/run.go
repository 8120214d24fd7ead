package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"hchttp/gateway/pkg/adminlink"
	"hchttp/gateway/pkg/apppool"
	"hchttp/gateway/pkg/cli"
	"hchttp/gateway/pkg/config"
	"hchttp/gateway/pkg/directory"
	"hchttp/gateway/pkg/server"
	"hchttp/gateway/pkg/telemetry/health"
	"hchttp/gateway/pkg/telemetry/logging"
	"hchttp/gateway/pkg/telemetry/metrics"
	"hchttp/gateway/pkg/zomecall"
)

var runFlags struct {
	address  string
	port     int
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway",
	Long: `Start the HTTP gateway with the specified configuration.

Configuration comes from the optional --config file and HC_GW_* environment
variables; flags override both.

Examples:
  # Start with environment configuration
  HC_GW_ADMIN_WS_URL=ws://localhost:8888 \
  HC_GW_ALLOWED_APP_IDS=forum \
  HC_GW_ALLOWED_FNS_forum=posts/list_posts \
  hc-http-gw run

  # Listen on all interfaces, port 8091
  hc-http-gw run --address 0.0.0.0 --port 8091

  # Validate config without starting the server
  hc-http-gw run --dry-run`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.address, "address", "a", "", "override listen address")
	runCmd.Flags().IntVarP(&runFlags.port, "port", "p", 0, "override listen port")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runGateway(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", err.Error())
	}
	cfg := config.GetConfig()

	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger.Slog())

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	gw, err := newGateway(cfg)
	if err != nil {
		return err
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	slog.Info("starting hc-http-gw",
		"version", Version,
		"conductor", cfg.Conductor.AdminWSURL,
		"allowed_apps", len(cfg.Apps.AllowedAppIDs),
	)

	if err := gw.run(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	slog.Info("hc-http-gw stopped")
	return nil
}

// applyRunFlags applies flag overrides and revalidates the result.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	if runFlags.address != "" {
		cfg.Gateway.Address = runFlags.address
	}
	if cmd.Flags().Changed("port") {
		cfg.Gateway.Port = runFlags.port
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	} else if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}
	return nil
}

// gateway holds the long-lived components of a running gateway.
type gateway struct {
	link      *adminlink.Link
	directory *directory.Directory
	refresher *directory.Refresher
	pool      *apppool.Pool
	server    *server.Server
}

func newGateway(cfg *config.Config) (*gateway, error) {
	allow, err := config.NewAllowList(cfg.Apps)
	if err != nil {
		return nil, cli.NewConfigError("apps", err.Error())
	}

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	link := adminlink.New(cfg.Conductor, adminlink.WithMetrics(collector))
	dir := directory.New(link, collector)

	pool, err := apppool.New(cfg.Conductor, cfg.Limits, link, allow, apppool.WithMetrics(collector))
	if err != nil {
		link.Close()
		return nil, cli.NewConfigError("conductor.admin_ws_url", err.Error())
	}

	dispatcher := zomecall.NewDispatcher(directory.NewResolver(dir, allow), pool, cfg.Limits.ZomeCallTimeout, collector)

	checker := health.New(cfg.Conductor.RequestTimeout)
	checker.RegisterCheck("conductor", link.Ping)

	return &gateway{
		link:      link,
		directory: dir,
		refresher: directory.NewRefresher(dir, cfg.Directory.RefreshSchedule),
		pool:      pool,
		server:    server.NewServer(cfg, dispatcher, checker, collector),
	}, nil
}

// run serves until ctx is canceled and releases every conductor connection
// on the way out.
func (g *gateway) run(ctx context.Context) error {
	defer g.close()

	// The directory also loads on the first lookup miss, so an unreachable
	// conductor at startup is not fatal.
	if snap, err := g.directory.Refresh(ctx); err != nil {
		slog.Warn("initial app directory refresh failed", "error", err)
	} else {
		slog.Info("app directory loaded", "apps", snap.Len())
	}

	if err := g.refresher.Start(ctx); err != nil {
		return err
	}

	return g.server.Start(ctx)
}

func (g *gateway) close() {
	g.refresher.Stop()
	g.pool.Close()
	if err := g.link.Close(); err != nil {
		slog.Warn("failed to close admin connection", "error", err)
	}
}
