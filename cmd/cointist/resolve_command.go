package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cointist/internal/model"
	"cointist/internal/pipeline"
	"cointist/internal/resolver"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var (
		tierNames []string
		noCatalog bool
		jsonOut   bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <file|->",
		Short: "Backfill missing ids on an item document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readItems(cmd, args[0])
			if err != nil {
				return err
			}
			p, err := ctx.openPipeline(cmd.Context(), pipeline.Options{WithoutCatalog: noCatalog})
			if err != nil {
				return err
			}

			r := p.Resolver
			if len(tierNames) > 0 {
				tiers, err := parseTiers(tierNames)
				if err != nil {
					return err
				}
				deps := resolver.Deps{Artifacts: p.Artifacts, Logs: p.Logs, Logger: p.Logger}
				if p.Catalog != nil {
					deps.Directory = p.Catalog
				}
				r = resolver.FromConfig(p.Config, deps, tiers...)
			}

			report, err := r.ResolveBatch(cmd.Context(), items)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"items":      items,
					"resolved":   report.Resolved,
					"unresolved": report.Unresolved,
				})
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(report.Resolved))
			for _, outcome := range report.Resolved {
				source := outcome.Source
				if outcome.Known() {
					source = fmt.Sprintf("%s @ %s", dash(source), outcome.Recency.Format("2006-01-02 15:04:05"))
				}
				rows = append(rows, []string{outcome.Key, outcome.ID.String(), dash(outcome.Slug), string(outcome.Tier), dash(source)})
			}
			fmt.Fprintln(out, renderTable([]string{"Key", "ID", "Slug", "Tier", "Evidence"}, rows, 1))
			fmt.Fprintf(out, "Resolved %d, unresolved %d\n", len(report.Resolved), len(report.Unresolved))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tierNames, "tier", nil, "Restrict resolution to these tiers (directMap, fuzzyTitle, logScan, liveQuery)")
	cmd.Flags().BoolVar(&noCatalog, "no-catalog", false, "Skip the persistent store (disables liveQuery)")
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

func parseTiers(names []string) ([]model.Tier, error) {
	tiers := make([]model.Tier, 0, len(names))
	for _, name := range names {
		tier, ok := model.ParseTier(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown tier %q", name)
		}
		tiers = append(tiers, tier)
	}
	return tiers, nil
}
