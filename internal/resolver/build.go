package resolver

import (
	"log/slog"

	"cointist/internal/artifacts"
	"cointist/internal/catalog"
	"cointist/internal/config"
	"cointist/internal/model"
	"cointist/internal/textutil"
)

// Deps are the stores the tiers read from. A nil Directory disables liveQuery.
type Deps struct {
	Artifacts artifacts.Store
	Logs      artifacts.Store
	Directory catalog.Directory
	Logger    *slog.Logger
}

// MatchPolicy returns the configured fuzzy title thresholds.
func MatchPolicy(cfg *config.Config) textutil.MatchPolicy {
	return textutil.MatchPolicy{
		MinOverlap:   cfg.Resolver.FuzzyMinOverlap,
		ShortOverlap: cfg.Resolver.FuzzyShortOverlap,
		ShortTokens:  cfg.Resolver.FuzzyShortTokens,
		MinShared:    cfg.Resolver.FuzzyMinShared,
	}
}

// FromConfig builds a Resolver running tiers in cascade order. With no tiers
// listed every available tier runs.
func FromConfig(cfg *config.Config, deps Deps, tiers ...model.Tier) *Resolver {
	if len(tiers) == 0 {
		tiers = model.Tiers()
	}
	wanted := make(map[model.Tier]bool, len(tiers))
	for _, tier := range tiers {
		wanted[tier] = true
	}

	index := NewSummaryIndex(deps.Artifacts)
	var strategies []Strategy
	for _, tier := range model.Tiers() {
		if !wanted[tier] {
			continue
		}
		switch tier {
		case model.TierDirectMap:
			strategies = append(strategies, NewDirectMap(index))
		case model.TierFuzzyTitle:
			strategies = append(strategies, NewFuzzyTitle(index, MatchPolicy(cfg)))
		case model.TierLogScan:
			if deps.Logs != nil {
				strategies = append(strategies, NewLogScan(deps.Logs, cfg.LogScanTimeout()))
			}
		case model.TierLiveQuery:
			if deps.Directory != nil {
				strategies = append(strategies, NewLiveQuery(deps.Directory, cfg.LiveQueryTimeout(), cfg.Resolver.LiveQueryRPS))
			}
		}
	}
	return New(Options{
		Strategies:  strategies,
		Concurrency: cfg.Resolver.Concurrency,
		Logger:      deps.Logger,
	})
}
