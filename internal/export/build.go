package export

import (
	"log/slog"
	"strings"

	"cointist/internal/config"
	"cointist/internal/model"
	"cointist/internal/resolver"
	"cointist/internal/slugmap"
)

// FromConfig builds the gate. A configured populate command replaces the in
// process populator, which runs the directMap and logScan tiers.
func FromConfig(cfg *config.Config, deps resolver.Deps, slugs *slugmap.Map, logger *slog.Logger) (*Gate, error) {
	var populator Populator
	if command := strings.TrimSpace(cfg.Export.PopulateCommand); command != "" {
		cmd, err := NewCommandPopulator(command, slugs.Path(), []string{
			"COINTIST_ARTIFACT_DIR=" + cfg.Paths.ArtifactDir,
			"COINTIST_LOG_DIR=" + cfg.WorkerLogDir(),
		}, cfg.PopulateTimeout(), logger)
		if err != nil {
			return nil, err
		}
		populator = cmd
	} else {
		deps.Directory = nil
		r := resolver.FromConfig(cfg, deps, model.TierDirectMap, model.TierLogScan)
		populator = NewResolverPopulator(r, slugs)
	}
	return New(Options{
		Path:      cfg.Paths.ExportFile,
		SlugMap:   slugs,
		Populator: populator,
		Logger:    logger,
	}), nil
}
