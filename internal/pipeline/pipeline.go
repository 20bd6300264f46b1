package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cointist/internal/aggregator"
	"cointist/internal/api"
	"cointist/internal/artifacts"
	"cointist/internal/catalog"
	"cointist/internal/config"
	"cointist/internal/dispatch"
	"cointist/internal/export"
	"cointist/internal/logging"
	"cointist/internal/notifications"
	"cointist/internal/registrar"
	"cointist/internal/resolver"
	"cointist/internal/slugmap"
)

// Options adjusts how the pipeline is assembled.
type Options struct {
	// Launcher replaces the configured worker process launcher.
	Launcher dispatch.Launcher
	// WithoutCatalog skips opening the persistent store, disabling liveQuery.
	WithoutCatalog bool
	// Notifier replaces the configured ntfy service.
	Notifier notifications.Service
}

// Pipeline holds the assembled components.
type Pipeline struct {
	Config     *config.Config
	Logger     *slog.Logger
	Artifacts  *artifacts.Dir
	Logs       *artifacts.Dir
	Catalog    catalog.Directory
	SlugMap    *slugmap.Map
	Resolver   *resolver.Resolver
	Aggregator *aggregator.Aggregator
	Registrar  *registrar.Registrar
	Export     *export.Gate
	Notifier   notifications.Service
}

// Open assembles the pipeline from configuration. A persistent store that
// cannot be opened is logged and leaves the liveQuery tier disabled.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	p := &Pipeline{
		Config:    cfg,
		Logger:    logger,
		Artifacts: artifacts.NewDir(cfg.Paths.ArtifactDir),
		Logs:      artifacts.NewDir(cfg.WorkerLogDir()),
		SlugMap:   slugmap.Open(cfg.Paths.SlugMapFile, logger),
		Notifier:  opts.Notifier,
	}
	if p.Notifier == nil {
		p.Notifier = notifications.NewService(cfg)
	}

	if !opts.WithoutCatalog {
		dir, err := catalog.Open(ctx, cfg.Store)
		if err != nil {
			logging.WarnWithContext(logger, "catalog unavailable", "catalog_open_failed",
				logging.String("driver", cfg.Store.Driver),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check [store] settings or run cointist catalog import"),
				logging.String(logging.FieldImpact, "liveQuery tier disabled"),
			)
		} else {
			p.Catalog = dir
		}
	}

	deps := resolver.Deps{
		Artifacts: p.Artifacts,
		Logs:      p.Logs,
		Logger:    logger,
	}
	if p.Catalog != nil {
		deps.Directory = p.Catalog
	}
	p.Resolver = resolver.FromConfig(cfg, deps)

	aggOpts := aggregator.Options{
		Artifacts:          p.Artifacts,
		Logs:               p.Logs,
		Window:             cfg.RunWindow(),
		AnchorOnInvocation: cfg.Aggregator.AnchorOnInvocation,
		Logger:             logger,
	}
	if cfg.Aggregator.Backfill {
		aggOpts.Backfiller = p.Resolver
	}
	p.Aggregator = aggregator.New(aggOpts)

	launcher := opts.Launcher
	if launcher == nil {
		launcher = workerLauncher(cfg, logger)
	}
	p.Registrar = registrar.New(registrar.Options{
		SnapshotFile: cfg.Paths.SnapshotFile,
		WorkerLogDir: cfg.WorkerLogDir(),
		Store:        p.Artifacts,
		Launcher:     launcher,
		Logger:       logger,
	})

	gate, err := export.FromConfig(cfg, resolver.Deps{Artifacts: p.Artifacts, Logs: p.Logs, Logger: logger}, p.SlugMap, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Export = gate
	return p, nil
}

// APIDeps exposes the components to the HTTP API.
func (p *Pipeline) APIDeps() api.Deps {
	return api.Deps{
		Registrar: registerFunc(p.Register),
		Summaries: p.Aggregator,
		Resolver:  p.Resolver,
		Exporter:  exportFunc(p.ExportItems),
		Artifacts: p.Artifacts,
		Logs:      p.Logs,
		SlugMap:   p.SlugMap,
		Alive:     dispatch.Alive,
	}
}

// Close releases the persistent store.
func (p *Pipeline) Close() error {
	if p == nil || p.Catalog == nil {
		return nil
	}
	err := p.Catalog.Close()
	p.Catalog = nil
	return err
}

// workerLauncher builds the configured process launcher. A missing or broken
// worker command only affects registration, so it yields a launcher that
// fails every launch with the configuration error.
func workerLauncher(cfg *config.Config, logger *slog.Logger) dispatch.Launcher {
	process, err := dispatch.NewProcessLauncher(cfg.Worker, logger)
	if err != nil {
		logger.Debug("worker launcher unavailable", logging.Error(err))
		return unavailableLauncher{err: err}
	}
	if err := process.Preflight(); err != nil {
		logging.WarnWithContext(logger, "worker preflight failed", "worker_preflight_failed",
			logging.String("program", process.Program()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check worker.command"),
			logging.String(logging.FieldImpact, "run registration will record launch failures"),
		)
	}
	return process
}

type unavailableLauncher struct {
	err error
}

func (l unavailableLauncher) Launch(context.Context, dispatch.Spec) (dispatch.Handle, error) {
	return dispatch.Handle{}, l.err
}
