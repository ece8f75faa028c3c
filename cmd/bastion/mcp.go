package main

import (
	"context"

	"github.com/spf13/cobra"

	"aidr-hq/bastion/pkg/cli"
	"aidr-hq/bastion/pkg/gateway"
	"aidr-hq/bastion/pkg/mcpserver"
)

var mcpFlags struct {
	transport     string
	listenAddress string
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the gateway as an MCP server",
	Long: `Expose run_pipeline and list_flows as Model Context Protocol tools.

With the stdio transport the server talks over stdin/stdout and logs go to
stderr. With the http transport it serves the streamable HTTP protocol on
mcp.listen_address.

Examples:
  bastion mcp
  bastion mcp --transport http --listen 127.0.0.1:8090`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringVar(&mcpFlags.transport, "transport", "", "override transport: stdio, http")
	mcpCmd.Flags().StringVar(&mcpFlags.listenAddress, "listen", "", "override the HTTP listen address")
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if mcpFlags.transport != "" {
		cfg.MCP.Transport = mcpFlags.transport
	}
	if mcpFlags.listenAddress != "" {
		cfg.MCP.ListenAddress = mcpFlags.listenAddress
	}

	version := cfg.ResolveVersion(Version)
	logger, err := newLogger(cfg, version)
	if err != nil {
		return err
	}

	ctx, cancel := cli.SignalContext(cmd.Context())
	defer cancel()

	g, err := gateway.New(ctx, cfg, gateway.Options{Version: version}, logger)
	if err != nil {
		return cli.NewCommandError("mcp", err)
	}
	defer g.Close(context.Background())

	if err := g.Start(ctx); err != nil {
		return cli.NewCommandError("mcp", err)
	}

	srv := mcpserver.New(cfg.MCP, g.Orchestrator, cfg.Service.Name, version, logger)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return cli.NewCommandError("mcp", err)
	}
	return nil
}
