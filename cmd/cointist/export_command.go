package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cointist/internal/export"
	"cointist/internal/model"
	"cointist/internal/pipeline"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "export <file|->",
		Short: "Validate a selected batch and write the canonical export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readItems(cmd, args[0])
			if err != nil {
				return err
			}
			p, err := ctx.openPipeline(cmd.Context(), pipeline.Options{WithoutCatalog: true})
			if err != nil {
				return err
			}

			result, err := p.ExportItems(cmd.Context(), items)
			if err != nil {
				var rejection *export.RejectionError
				if errors.As(err, &rejection) {
					if jsonOut {
						_ = writeJSON(cmd, rejection)
					} else {
						printRejection(cmd, rejection, items)
					}
				}
				return err
			}
			if jsonOut {
				return writeJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d items to %s", result.Count, result.Path)
			if result.Patched > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), " (%d ids patched from the slug map)", result.Patched)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

func printRejection(cmd *cobra.Command, rejection *export.RejectionError, items []model.Item) {
	rows := make([][]string, 0, len(rejection.InvalidIndexes))
	for _, idx := range rejection.InvalidIndexes {
		row := []string{strconv.Itoa(idx), "-", "-"}
		if idx >= 0 && idx < len(items) {
			row[1] = dash(items[idx].Slug)
			row[2] = dash(items[idx].Title)
		}
		rows = append(rows, row)
	}
	out := cmd.ErrOrStderr()
	fmt.Fprintf(out, "Export rejected: %d of %d items have no id\n", rejection.MissingCount, len(items))
	fmt.Fprintln(out, renderTable([]string{"Index", "Slug", "Title"}, rows, 0))
}
