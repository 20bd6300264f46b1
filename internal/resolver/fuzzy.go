package resolver

import (
	"context"
	"strings"

	"cointist/internal/model"
	"cointist/internal/textutil"
)

// FuzzyTitle matches items by title token overlap against summary artifacts.
type FuzzyTitle struct {
	index  *SummaryIndex
	policy textutil.MatchPolicy
}

// NewFuzzyTitle returns the fuzzyTitle tier over index.
func NewFuzzyTitle(index *SummaryIndex, policy textutil.MatchPolicy) *FuzzyTitle {
	return &FuzzyTitle{index: index, policy: policy}
}

func (f *FuzzyTitle) Tier() model.Tier { return model.TierFuzzyTitle }

// Prepare refreshes the shared summary index.
func (f *FuzzyTitle) Prepare(ctx context.Context) error { return f.index.Refresh(ctx) }

func (f *FuzzyTitle) preparer() Preparer { return f.index }

// Resolve returns the best-scoring accepted title match. Equal scores are
// broken by newer evidence.
func (f *FuzzyTitle) Resolve(ctx context.Context, item model.Item) (model.Outcome, bool, error) {
	target := textutil.NewTokenSet(item.Title)
	if target.Len() == 0 {
		return model.Outcome{}, false, nil
	}
	var (
		best      Evidence
		bestScore textutil.Score
		found     bool
	)
	for _, ev := range f.index.Evidence() {
		if !ev.Item.Resolved() || strings.TrimSpace(ev.Item.Title) == "" {
			continue
		}
		score := textutil.ScoreSets(target, textutil.NewTokenSet(ev.Item.Title))
		if !f.policy.Accept(score) {
			continue
		}
		switch {
		case !found, textutil.Better(score, bestScore):
		case !textutil.Better(bestScore, score) && ev.Recency.After(best.Recency):
		default:
			continue
		}
		best, bestScore, found = ev, score, true
	}
	if !found {
		return model.Outcome{}, false, ctx.Err()
	}
	return evidenceOutcome(best, model.TierFuzzyTitle), true, nil
}
