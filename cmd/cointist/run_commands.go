package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cointist/internal/artifacts"
	"cointist/internal/dispatch"
	"cointist/internal/logs"
	"cointist/internal/pipeline"
	"cointist/internal/registrar"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Register and inspect extraction runs",
	}
	runCmd.AddCommand(newRunStartCommand(ctx))
	runCmd.AddCommand(newRunStatusCommand(ctx))
	runCmd.AddCommand(newRunLogsCommand(ctx))
	return runCmd
}

func newRunStartCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "start <key> [key...]",
		Short: "Select snapshot items by slug, title or url and dispatch workers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.openPipeline(cmd.Context(), pipeline.Options{WithoutCatalog: true})
			if err != nil {
				return err
			}
			reg, err := p.Register(cmd.Context(), args)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, reg)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s registered at %s\n", reg.Token, reg.StartedAt.Format(time.RFC3339))
			rows := make([][]string, 0, len(reg.Items))
			for _, item := range reg.Items {
				pid := "-"
				if item.PID > 0 {
					pid = strconv.Itoa(item.PID)
				}
				rows = append(rows, []string{item.Key, item.Slug, pid, yesNo(item.Dispatched), dash(item.Error)})
			}
			fmt.Fprintln(out, renderTable([]string{"Key", "Slug", "PID", "Dispatched", "Error"}, rows, 2))
			fmt.Fprintf(out, "Dispatched %d of %d workers\n", reg.Dispatched(), len(reg.Items))
			return nil
		},
	}
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

type workerView struct {
	Slug       string `json:"slug"`
	PID        int    `json:"pid,omitempty"`
	Dispatched bool   `json:"dispatched"`
	Alive      bool   `json:"alive"`
	Done       bool   `json:"done"`
	LogPath    string `json:"logPath,omitempty"`
	Error      string `json:"error,omitempty"`
}

type runView struct {
	Token     string       `json:"token"`
	File      string       `json:"file"`
	StartedAt time.Time    `json:"startedAt"`
	Workers   []workerView `json:"workers"`
}

func newRunStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status <token>",
		Short: "Show a run's workers and whether they are still running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store := artifacts.NewDir(cfg.Paths.ArtifactDir)
			inv, file, err := registrar.LoadInvocation(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}

			view := runView{Token: inv.Token, File: file, StartedAt: inv.StartedAt}
			for _, worker := range inv.Workers {
				w := workerView{
					Slug:       worker.Slug,
					PID:        worker.PID,
					Dispatched: worker.Dispatched,
					LogPath:    worker.LogPath,
					Error:      worker.Error,
				}
				if worker.OutputPath != "" {
					w.Done = store.Exists(filepath.Base(worker.OutputPath))
				}
				if worker.PID > 0 {
					w.Alive, _ = dispatch.Alive(cmd.Context(), worker.PID)
				}
				view.Workers = append(view.Workers, w)
			}
			if jsonOut {
				return writeJSON(cmd, view)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s started %s (%s)\n", view.Token, view.StartedAt.Format(time.RFC3339), view.File)
			rows := make([][]string, 0, len(view.Workers))
			for _, w := range view.Workers {
				pid := "-"
				if w.PID > 0 {
					pid = strconv.Itoa(w.PID)
				}
				rows = append(rows, []string{w.Slug, pid, yesNo(w.Dispatched), yesNo(w.Alive), yesNo(w.Done), dash(w.Error)})
			}
			fmt.Fprintln(out, renderTable([]string{"Slug", "PID", "Dispatched", "Running", "Summary", "Error"}, rows, 1))
			return nil
		},
	}
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

func newRunLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		slug   string
		lines  int
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "logs <token>",
		Short: "Print a worker log from a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			inv, _, err := registrar.LoadInvocation(cmd.Context(), artifacts.NewDir(cfg.Paths.ArtifactDir), args[0])
			if err != nil {
				return err
			}
			worker, ok := inv.Worker(slug)
			if !ok {
				return fmt.Errorf("run %s has %d workers; choose one with --slug", inv.Token, len(inv.Workers))
			}
			if worker.LogPath == "" {
				return fmt.Errorf("worker %s has no log", worker.Slug)
			}

			runCtx := cmd.Context()
			if follow {
				var stop context.CancelFunc
				runCtx, stop = signal.NotifyContext(runCtx, os.Interrupt, syscall.SIGTERM)
				defer stop()
			}

			out := cmd.OutOrStdout()
			opts := logs.Options{Offset: -1, Limit: lines}
			for {
				chunk, err := logs.Tail(runCtx, worker.LogPath, opts)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				for _, line := range chunk.Lines {
					fmt.Fprintln(out, line)
				}
				if !follow {
					return nil
				}
				opts = logs.Options{Offset: chunk.Offset, Follow: true, Wait: 5 * time.Second}
				if runCtx.Err() != nil {
					return nil
				}
			}
		},
	}
	cmd.Flags().StringVar(&slug, "slug", "", "Worker slug (required for multi-item runs)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	return cmd
}
