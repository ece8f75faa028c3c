/*
Package cli provides helpers shared by the bastion commands: output
formatting, progress reporting, signal handling and exit codes.

Output formatting:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Tables for human readable listings:

	table := cli.NewTable(os.Stdout, "FLOW", "DETECTORS")
	table.Row("default", "regex, openai")
	table.Flush()

Signal handling:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli
