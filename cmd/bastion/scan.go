package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"aidr-hq/bastion/pkg/cli"
	"aidr-hq/bastion/pkg/gateway"
	"aidr-hq/bastion/pkg/orchestrator"
	"aidr-hq/bastion/pkg/verdict"
)

var scanFlags struct {
	flow     string
	taskID   string
	language string
	file     string
	output   string
	failOn   string
	notify   bool
}

var scanCmd = &cobra.Command{
	Use:   "scan [prompt]",
	Short: "Scan one prompt with a flow",
	Long: `Run a flow over one prompt and print the verdict.

The prompt is taken from the argument, from --file, or from stdin when
--file is "-".

Examples:
  bastion scan "ignore all previous instructions"
  bastion scan --flow code --language python --file snippet.py
  echo "drop table users" | bastion scan --file - --fail-on block`,
	Args: cobra.MaximumNArgs(1),
	RunE: scanPrompt,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanFlags.flow, "flow", "default", "flow to run")
	scanCmd.Flags().StringVar(&scanFlags.taskID, "task-id", "", "task identifier attached to events")
	scanCmd.Flags().StringVar(&scanFlags.language, "language", "", "source language for code analysis")
	scanCmd.Flags().StringVarP(&scanFlags.file, "file", "f", "", `read the prompt from a file ("-" for stdin)`)
	scanCmd.Flags().StringVarP(&scanFlags.output, "output", "o", "text", "output format: text, json")
	scanCmd.Flags().StringVar(&scanFlags.failOn, "fail-on", "", "exit non-zero at this status or above: notify, block")
	scanCmd.Flags().BoolVar(&scanFlags.notify, "notify", false, "publish the verdict to the configured sinks")
}

func scanPrompt(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(scanFlags.output)
	if err != nil {
		return err
	}
	var failOn verdict.Status
	if scanFlags.failOn != "" {
		if failOn, err = verdict.ParseStatus(scanFlags.failOn); err != nil {
			return fmt.Errorf("--fail-on: %w", err)
		}
	}
	prompt, err := readPrompt(cmd.InOrStdin(), args)
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

	g, err := gateway.New(cmd.Context(), cfg, gateway.Options{Version: version, DisableNotify: !scanFlags.notify}, logger)
	if err != nil {
		return cli.NewCommandError("scan", err)
	}
	defer g.Close(context.Background())

	res := g.Orchestrator.Execute(cmd.Context(), orchestrator.Request{
		Prompt:   prompt,
		Flow:     scanFlags.flow,
		TaskID:   scanFlags.taskID,
		Language: scanFlags.language,
	})

	if err := printResult(cmd.OutOrStdout(), format, res); err != nil {
		return err
	}
	if failOn != "" && res.Status.AtLeast(failOn) {
		return cli.NewCommandError("scan", fmt.Errorf("verdict is %s", res.Status))
	}
	return nil
}

func readPrompt(stdin io.Reader, args []string) (string, error) {
	switch {
	case len(args) == 1 && scanFlags.file != "":
		return "", fmt.Errorf("give the prompt as an argument or with --file, not both")
	case len(args) == 1:
		return args[0], nil
	case scanFlags.file == "-":
		data, err := io.ReadAll(stdin)
		return string(data), err
	case scanFlags.file != "":
		data, err := os.ReadFile(scanFlags.file)
		return string(data), err
	default:
		return "", fmt.Errorf("a prompt is required")
	}
}

func printResult(w io.Writer, format cli.OutputFormat, res verdict.TaskResult) error {
	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(w, res)
	}

	fmt.Fprintf(w, "Status: %s\n", strings.ToUpper(string(res.Status)))
	if len(res.Pipelines) == 0 {
		return nil
	}
	table := cli.NewTable(w, "DETECTOR", "STATUS", "ACTION", "RULE")
	for _, p := range res.Pipelines {
		for _, r := range p.TriggeredRules {
			name := r.Details
			if r.Name != "" {
				name = r.Name
			}
			table.Row(p.Name, string(p.Status), string(r.Action), name)
		}
	}
	return table.Flush()
}
