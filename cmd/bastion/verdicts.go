package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"aidr-hq/bastion/pkg/cli"
	"aidr-hq/bastion/pkg/store"
	"aidr-hq/bastion/pkg/verdict"
)

var verdictsCmd = &cobra.Command{
	Use:   "verdicts",
	Short: "Query recorded verdicts",
}

var verdictsListFlags struct {
	taskID string
	flow   string
	status string
	since  time.Duration
	limit  int
	output string
}

var verdictsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded verdicts, newest first",
	Long: `List verdicts from the local verdict store.

Examples:
  bastion verdicts list
  bastion verdicts list --status block --since 24h
  bastion verdicts list --task-id 42 --output json`,
	Args: cobra.NoArgs,
	RunE: listVerdicts,
}

func init() {
	rootCmd.AddCommand(verdictsCmd)
	verdictsCmd.AddCommand(verdictsListCmd)

	f := verdictsListCmd.Flags()
	f.StringVar(&verdictsListFlags.taskID, "task-id", "", "only this task")
	f.StringVar(&verdictsListFlags.flow, "flow", "", "only this flow")
	f.StringVar(&verdictsListFlags.status, "status", "", "only this status: notify, block")
	f.DurationVar(&verdictsListFlags.since, "since", 0, "only verdicts newer than this age (e.g. 24h)")
	f.IntVar(&verdictsListFlags.limit, "limit", 20, "maximum number of verdicts")
	f.StringVarP(&verdictsListFlags.output, "output", "o", "text", "output format: text, json")
}

func listVerdicts(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(verdictsListFlags.output)
	if err != nil {
		return err
	}
	q := store.Query{
		TaskID: verdictsListFlags.taskID,
		Flow:   verdictsListFlags.flow,
		Limit:  verdictsListFlags.limit,
	}
	if verdictsListFlags.status != "" {
		if q.Status, err = verdict.ParseStatus(verdictsListFlags.status); err != nil {
			return fmt.Errorf("--status: %w", err)
		}
	}
	if verdictsListFlags.since > 0 {
		q.Since = time.Now().Add(-verdictsListFlags.since)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s, err := store.Open(store.Options{Path: cfg.Store.Path, BusyTimeout: cfg.Store.BusyTimeout}, discardLogger())
	if err != nil {
		return cli.NewCommandError("verdicts list", err)
	}
	defer s.Close(cmd.Context())

	records, err := s.List(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("verdicts list", err)
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		if records == nil {
			records = []store.Record{}
		}
		return cli.NewFormatter(format).FormatTo(out, map[string]any{"verdicts": records})
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No verdicts found")
		return nil
	}
	table := cli.NewTable(out, "TIME", "TASK", "FLOW", "STATUS", "DETECTORS")
	for _, r := range records {
		names := make([]string, 0, len(r.Pipelines))
		for _, p := range r.Pipelines {
			names = append(names, p.Name)
		}
		task := r.TaskID
		if task == "" {
			task = "-"
		}
		table.Row(r.CreatedAt.Local().Format(time.DateTime), task, r.Flow, strings.ToUpper(string(r.Status)), strings.Join(names, ","))
	}
	return table.Flush()
}
