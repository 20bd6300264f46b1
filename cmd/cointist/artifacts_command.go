package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cointist/internal/artifacts"
)

func newArtifactsCommand(ctx *commandContext) *cobra.Command {
	artifactsCmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Inspect and clean the shared artifact store",
	}
	artifactsCmd.AddCommand(newArtifactsPruneCommand(ctx))
	return artifactsCmd
}

func newArtifactsPruneCommand(ctx *commandContext) *cobra.Command {
	var (
		maxAge time.Duration
		kinds  []string
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove artifacts and worker logs older than --max-age",
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxAge <= 0 {
				return fmt.Errorf("--max-age must be positive")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.loggerValue()

			removed := 0
			var failures []artifacts.PruneError
			for _, dir := range []*artifacts.Dir{
				artifacts.NewDir(cfg.Paths.ArtifactDir),
				artifacts.NewDir(cfg.WorkerLogDir()),
			} {
				result := artifacts.Prune(cmd.Context(), dir, maxAge, kinds, logger)
				removed += len(result.Removed)
				failures = append(failures, result.Errors...)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d artifacts older than %s\n", removed, maxAge)
			for _, failure := range failures {
				fmt.Fprintf(out, "  failed: %s: %v\n", failure.Path, failure.Error)
			}
			if len(failures) > 0 {
				return fmt.Errorf("%d artifacts could not be removed", len(failures))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 7*24*time.Hour, "Remove artifacts stamped before now minus this age")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "Restrict to artifact prefixes (selection, invocation, summary, worker)")
	return cmd
}
