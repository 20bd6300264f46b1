package main

import (
	"github.com/spf13/cobra"

	"cointist/internal/pipeline"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the coordination HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Paths.APIBind = bind
			}
			p, err := ctx.openPipeline(cmd.Context(), pipeline.Options{})
			if err != nil {
				return err
			}
			return p.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Override paths.api_bind")
	return cmd
}
