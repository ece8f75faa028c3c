package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"aidr-hq/bastion/pkg/cli"
	"aidr-hq/bastion/pkg/gateway"
	"aidr-hq/bastion/pkg/verdict"
)

var flowsFlags struct {
	output string
}

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List configured flows",
	Long: `Build every detector from the configuration and list the resulting
flows. Disabled detectors are marked with a trailing "(disabled)".`,
	Args: cobra.NoArgs,
	RunE: listFlows,
}

func init() {
	rootCmd.AddCommand(flowsCmd)
	flowsCmd.Flags().StringVarP(&flowsFlags.output, "output", "o", "text", "output format: text, json")
}

func listFlows(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(flowsFlags.output)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	version := cfg.ResolveVersion(Version)
	logger, err := newLogger(cfg, version)
	if err != nil {
		return err
	}

	g, err := gateway.New(cmd.Context(), cfg, gateway.Options{Version: version, DisableNotify: true}, logger)
	if err != nil {
		return cli.NewCommandError("flows", err)
	}
	defer g.Close(context.Background())

	flows := g.Orchestrator.ListFlows()
	out := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(out, map[string]any{"flows": flows})
	}

	table := cli.NewTable(out, "FLOW", "DETECTORS")
	for _, f := range flows {
		table.Row(f.FlowName, describeDetectors(f.Pipelines))
	}
	return table.Flush()
}

func describeDetectors(ds []verdict.DetectorInfo) string {
	if len(ds) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ds))
	for _, d := range ds {
		if d.Enabled {
			parts = append(parts, d.Name)
		} else {
			parts = append(parts, fmt.Sprintf("%s (disabled)", d.Name))
		}
	}
	return strings.Join(parts, ", ")
}
