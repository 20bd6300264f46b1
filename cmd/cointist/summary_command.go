package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cointist/internal/aggregator"
	"cointist/internal/pipeline"
)

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	var (
		sinceMillis int64
		wait        bool
		timeout     time.Duration
		noCatalog   bool
		jsonOut     bool
	)

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Merge the current run's worker summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.openPipeline(cmd.Context(), pipeline.Options{WithoutCatalog: noCatalog})
			if err != nil {
				return err
			}
			var since *time.Time
			if sinceMillis > 0 {
				ts := time.UnixMilli(sinceMillis)
				since = &ts
			}

			var result aggregator.Result
			if wait {
				if timeout <= 0 {
					timeout = p.Config.WaitTimeout()
				}
				result, err = p.Aggregator.Wait(cmd.Context(), since, timeout, p.Config.PollInterval())
			} else {
				result, err = p.Aggregator.Latest(cmd.Context(), since)
			}
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			if !result.Found {
				fmt.Fprintf(out, "No summary: %s\n", result.Message)
				return nil
			}
			if b := result.Boundary; b != nil {
				fmt.Fprintf(out, "Run window %s .. %s (%s)\n", b.Lower.Format(time.RFC3339), b.Upper.Format(time.RFC3339), b.Source)
			}
			rows := make([][]string, 0, len(result.Summary.Items))
			for _, item := range result.Summary.Items {
				rows = append(rows, []string{dash(item.ID.String()), dash(item.Slug), dash(item.Title)})
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "Slug", "Title"}, rows, 0))
			fmt.Fprintf(out, "%d items from %d files", len(result.Summary.Items), result.FileCount)
			if result.Backfills > 0 {
				fmt.Fprintf(out, ", %d ids backfilled", result.Backfills)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().Int64Var(&sinceMillis, "since", 0, "Only report summaries newer than this epoch-millisecond time")
	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until a summary appears")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Wait timeout (defaults to aggregator.wait_timeout_seconds)")
	cmd.Flags().BoolVar(&noCatalog, "no-catalog", false, "Skip the persistent store when backfilling ids")
	addJSONFlag(cmd, &jsonOut)
	return cmd
}
