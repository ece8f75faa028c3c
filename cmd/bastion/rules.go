package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"aidr-hq/bastion/pkg/cli"
	"aidr-hq/bastion/pkg/detector/regex"
	"aidr-hq/bastion/pkg/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Work with regex rule files",
}

var rulesLintFlags struct {
	strict bool
	output string
}

var rulesLintCmd = &cobra.Command{
	Use:   "lint [dir]",
	Short: "Validate regex rule files",
	Long: `Load every rule file under a directory the same way the regex detector
does and report files, records and rules that would be skipped.

The directory defaults to detectors.regex.rules_dir from the configuration.

Examples:
  bastion rules lint
  bastion rules lint rules/regex --strict
  bastion rules lint --output json`,
	Args: cobra.MaximumNArgs(1),
	RunE: lintRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesLintCmd)

	rulesLintCmd.Flags().BoolVar(&rulesLintFlags.strict, "strict", false, "fail when any record is skipped")
	rulesLintCmd.Flags().StringVarP(&rulesLintFlags.output, "output", "o", "text", "output format: text, json")
}

type lintReport struct {
	Dir     string   `json:"dir"`
	Files   int      `json:"files"`
	Records int      `json:"records"`
	Rules   int      `json:"rules"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

func lintRules(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(rulesLintFlags.output)
	if err != nil {
		return err
	}

	var dir string
	if len(args) == 1 {
		dir = args[0]
	} else {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir = cfg.Detectors.Regex.RulesDir
	}

	lc := rules.DefaultLoaderConfig()
	lc.ValidatePattern = regex.ValidatePattern
	loaded, report, err := rules.NewLoader(lc, discardLogger()).LoadDir(dir)
	if err != nil {
		return cli.NewCommandError("rules lint", err)
	}

	out := lintReport{
		Dir:     report.Dir,
		Files:   report.Files,
		Records: report.Records,
		Rules:   len(loaded),
		Skipped: report.Skipped,
		Errors:  []string{},
	}
	for _, e := range report.Errors.Errors {
		out.Errors = append(out.Errors, e.Error())
	}

	w := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		if err := cli.NewFormatter(format).FormatTo(w, out); err != nil {
			return err
		}
	} else {
		printLintReport(w, out)
	}

	switch {
	case out.Rules == 0:
		return cli.NewCommandError("rules lint", fmt.Errorf("no usable rules in %s", dir))
	case rulesLintFlags.strict && len(out.Errors) > 0:
		return cli.NewCommandError("rules lint", fmt.Errorf("%d problem(s) found", len(out.Errors)))
	}
	return nil
}

func printLintReport(w io.Writer, r lintReport) {
	fmt.Fprintf(w, "Directory: %s\n", r.Dir)
	fmt.Fprintf(w, "Files:     %d\n", r.Files)
	fmt.Fprintf(w, "Records:   %d\n", r.Records)
	fmt.Fprintf(w, "Rules:     %d\n", r.Rules)
	fmt.Fprintf(w, "Skipped:   %d\n", r.Skipped)

	if len(r.Errors) == 0 {
		fmt.Fprintln(w, "\n✓ No problems found")
		return
	}
	fmt.Fprintf(w, "\n✗ %d problem(s):\n", len(r.Errors))
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  - %s\n", e)
	}
}
