package resolver

import (
	"context"
	"strings"

	"cointist/internal/model"
)

// DirectMap matches items by slug against summary artifacts of every run.
type DirectMap struct {
	index *SummaryIndex
}

// NewDirectMap returns the directMap tier over index.
func NewDirectMap(index *SummaryIndex) *DirectMap {
	return &DirectMap{index: index}
}

func (d *DirectMap) Tier() model.Tier { return model.TierDirectMap }

// Prepare refreshes the shared summary index.
func (d *DirectMap) Prepare(ctx context.Context) error { return d.index.Refresh(ctx) }

func (d *DirectMap) preparer() Preparer { return d.index }

// Resolve returns the newest summary item whose slug or old slug equals one
// of item's.
func (d *DirectMap) Resolve(ctx context.Context, item model.Item) (model.Outcome, bool, error) {
	wanted := slugSet(item)
	if len(wanted) == 0 {
		return model.Outcome{}, false, nil
	}
	var (
		best  Evidence
		found bool
	)
	for _, ev := range d.index.Evidence() {
		if !ev.Item.Resolved() {
			continue
		}
		if !matchesSlug(wanted, ev.Item) {
			continue
		}
		if !found || ev.Recency.After(best.Recency) {
			best = ev
			found = true
		}
	}
	if !found {
		return model.Outcome{}, false, ctx.Err()
	}
	return evidenceOutcome(best, model.TierDirectMap), true, nil
}

func slugSet(item model.Item) map[string]struct{} {
	set := make(map[string]struct{}, 2)
	for _, s := range []string{item.Slug, item.OldSlug} {
		if s = strings.TrimSpace(s); s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

func matchesSlug(wanted map[string]struct{}, candidate model.Item) bool {
	for _, s := range []string{candidate.Slug, candidate.OldSlug} {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		if _, ok := wanted[s]; ok {
			return true
		}
	}
	return false
}

func evidenceOutcome(ev Evidence, tier model.Tier) model.Outcome {
	return model.Outcome{
		ID:      ev.Item.ID,
		Slug:    strings.TrimSpace(ev.Item.Slug),
		Tier:    tier,
		Recency: ev.Recency,
		Source:  ev.Source,
	}
}
