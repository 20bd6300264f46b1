package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"cointist/internal/artifacts"
	"cointist/internal/catalog"
	"cointist/internal/preflight"
	"cointist/internal/slugmap"
	"cointist/internal/snapshot"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check configuration, stores and the worker command",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			line := func(label string, kind statusKind, message string) {
				fmt.Fprintln(out, renderStatusLine(label, kind, message, colorize))
			}

			path := ctx.configPath
			if path == "" {
				path = "(defaults)"
			}
			line("Config", statusInfo, path)

			if snap, err := snapshot.Load(cfg.Paths.SnapshotFile); err != nil {
				line("Snapshot", statusWarn, err.Error())
			} else {
				line("Snapshot", statusOK, fmt.Sprintf("%d items in %s", len(snap.Items), cfg.Paths.SnapshotFile))
			}

			store := artifacts.NewDir(cfg.Paths.ArtifactDir)
			if entries, err := store.List(cmd.Context(), ""); err != nil {
				line("Artifacts", statusError, err.Error())
			} else {
				line("Artifacts", statusOK, fmt.Sprintf("%s (%s)", cfg.Paths.ArtifactDir, countKinds(entries)))
			}
			if entries, err := artifacts.NewDir(cfg.WorkerLogDir()).List(cmd.Context(), artifacts.KindWorker+"-"); err != nil {
				line("Worker logs", statusWarn, err.Error())
			} else {
				line("Worker logs", statusOK, fmt.Sprintf("%d in %s", len(entries), cfg.WorkerLogDir()))
			}

			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				line(result.Name, kind, result.Detail)
			}

			if dir, err := catalog.Open(cmd.Context(), cfg.Store); err != nil {
				line("Catalog", statusWarn, err.Error())
			} else {
				count, countErr := dir.Count(cmd.Context())
				dir.Close()
				if countErr != nil {
					line("Catalog", statusWarn, countErr.Error())
				} else {
					line("Catalog", statusOK, fmt.Sprintf("%s, %d articles", cfg.Store.Driver, count))
				}
			}

			slugs := slugmap.Open(cfg.Paths.SlugMapFile, nil)
			line("Slug map", statusInfo, fmt.Sprintf("%d entries in %s", slugs.Count(), slugs.Path()))
			line("Export", statusInfo, cfg.Paths.ExportFile)
			if cfg.Notifications.NtfyTopic == "" {
				line("Notifications", statusInfo, "disabled")
			}
			return nil
		},
	}
}

func countKinds(entries []artifacts.Entry) string {
	counts := map[string]int{}
	for _, entry := range entries {
		if entry.Named {
			counts[entry.Parsed.Kind]++
		}
	}
	if len(counts) == 0 {
		return "empty"
	}
	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, fmt.Sprintf("%d %s", counts[kind], kind))
	}
	return strings.Join(parts, ", ")
}
