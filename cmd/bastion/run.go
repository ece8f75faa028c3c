package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"aidr-hq/bastion/pkg/api/handlers"
	"aidr-hq/bastion/pkg/cli"
	"aidr-hq/bastion/pkg/gateway"
	"aidr-hq/bastion/pkg/server"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Bastion API server",
	Long: `Start the HTTP API with the specified configuration.

Examples:
  # Start with the default config
  bastion run

  # Override the listen address
  bastion run --listen 0.0.0.0:8080

  # Validate config without starting the server
  bastion run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	version := cfg.ResolveVersion(Version)
	logger, err := newLogger(cfg, version)
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	g, err := gateway.New(ctx, cfg, gateway.Options{Version: version}, logger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		if err := g.Close(context.Background()); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()
	if err := g.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	var verdicts handlers.VerdictLister
	if g.Store != nil {
		verdicts = g.Store
	}
	h := handlers.New(g.Orchestrator, verdicts, cfg.Server.MaxBodyBytes, logger)
	srv := server.New(&cfg.Server, &cfg.Telemetry.Metrics, h, g.Health, g.Metrics, g.Tracer, logger)

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}
