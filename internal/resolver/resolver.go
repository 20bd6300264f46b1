package resolver

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"cointist/internal/logging"
	"cointist/internal/model"
	"cointist/internal/services"
)

const defaultConcurrency = 4

// Strategy is one resolution tier.
type Strategy interface {
	Tier() model.Tier
	// Resolve returns the tier's best candidate for item. A false result with
	// a nil error means the tier has no answer.
	Resolve(ctx context.Context, item model.Item) (model.Outcome, bool, error)
}

// Preparer is implemented by strategies that load shared state once per batch.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// sharedPreparer is implemented by strategies whose state belongs to another
// Preparer, so strategies over the same state prepare it once.
type sharedPreparer interface {
	preparer() Preparer
}

// Options configures a Resolver.
type Options struct {
	Strategies  []Strategy
	Concurrency int
	Logger      *slog.Logger
}

// Resolver runs the cascade over batches of items.
type Resolver struct {
	strategies  []Strategy
	concurrency int
	logger      *slog.Logger
}

// Report describes a ResolveBatch call. Resolved is in item order; Unresolved
// lists the indexes still lacking an id.
type Report struct {
	Resolved   []model.Outcome `json:"resolved"`
	Unresolved []int           `json:"unresolved"`
}

// New constructs a Resolver.
func New(opts Options) *Resolver {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Resolver{
		strategies:  append([]Strategy(nil), opts.Strategies...),
		concurrency: concurrency,
		logger:      logging.NewComponentLogger(opts.Logger, "resolver"),
	}
}

// Tiers lists the configured tiers in cascade order.
func (r *Resolver) Tiers() []model.Tier {
	tiers := make([]model.Tier, 0, len(r.strategies))
	for _, s := range r.strategies {
		tiers = append(tiers, s.Tier())
	}
	return tiers
}

// Resolve runs the cascade for a single item.
func (r *Resolver) Resolve(ctx context.Context, item model.Item) (model.Outcome, bool) {
	return Cascade(ctx, r.strategies, item, r.logger)
}

// ResolveBatch resolves every item lacking an id, concurrently. Resolved
// items are updated in place: the id is set and the slug replaced, keeping
// the previous slug as oldSlug. Only cancellation is returned as an error.
func (r *Resolver) ResolveBatch(ctx context.Context, items []model.Item) (Report, error) {
	r.prepare(ctx)
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	outcomes := make([]*model.Outcome, len(items))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)
	for idx := range items {
		if items[idx].Resolved() {
			continue
		}
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			itemCtx := services.WithItemSlug(groupCtx, itemKey(items[idx]))
			outcome, ok := Cascade(itemCtx, r.strategies, items[idx], r.logger)
			if !ok {
				return nil
			}
			items[idx].ID = outcome.ID
			items[idx].SetSlug(outcome.Slug)
			outcomes[idx] = &outcome
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{Resolved: []model.Outcome{}, Unresolved: []int{}}
	for idx := range items {
		switch {
		case outcomes[idx] != nil:
			report.Resolved = append(report.Resolved, *outcomes[idx])
		case !items[idx].Resolved():
			report.Unresolved = append(report.Unresolved, idx)
		}
	}
	r.logger.Debug("batch resolved",
		logging.Int("items", len(items)),
		logging.Int("resolved", len(report.Resolved)),
		logging.Int("unresolved", len(report.Unresolved)),
	)
	return report, nil
}

// Backfill resolves items in place and reports how many gained an id. It
// satisfies aggregator.Backfiller.
func (r *Resolver) Backfill(ctx context.Context, items []model.Item) (int, error) {
	report, err := r.ResolveBatch(ctx, items)
	if err != nil {
		return 0, err
	}
	return len(report.Resolved), nil
}

func (r *Resolver) prepare(ctx context.Context) {
	seen := make(map[Preparer]struct{}, len(r.strategies))
	for _, s := range r.strategies {
		p, ok := s.(Preparer)
		if !ok {
			continue
		}
		if shared, ok := s.(sharedPreparer); ok {
			p = shared.preparer()
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		if err := p.Prepare(ctx); err != nil {
			logging.WarnWithContext(r.logger, "resolution tier unavailable", "tier_prepare_failed",
				logging.Tier(string(s.Tier())),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check artifact and log directories"),
				logging.String(logging.FieldImpact, "tier answers from stale or empty state"),
			)
		}
	}
}

// Cascade runs every strategy and keeps the outcome with the newest evidence.
// A later outcome replaces the best when model.Outcome.Supersedes says so.
func Cascade(ctx context.Context, strategies []Strategy, item model.Item, logger *slog.Logger) (model.Outcome, bool) {
	if logger == nil {
		logger = logging.NewNop()
	}
	var (
		best  model.Outcome
		found bool
	)
	for _, strategy := range strategies {
		if ctx.Err() != nil {
			break
		}
		tier := strategy.Tier()
		outcome, ok, err := strategy.Resolve(services.WithTier(ctx, string(tier)), item)
		if err != nil {
			logger.Debug("tier failed",
				logging.Tier(string(tier)),
				logging.ItemSlug(itemKey(item)),
				logging.Error(err),
			)
			continue
		}
		if !ok || !outcome.ID.Valid() {
			continue
		}
		outcome.Tier = tier
		if outcome.Key == "" {
			outcome.Key = itemKey(item)
		}
		if !found || outcome.Supersedes(best) {
			best = outcome
			found = true
		}
	}
	return best, found
}

// itemKey names an item in outcomes and logs.
func itemKey(item model.Item) string {
	for _, candidate := range []string{item.Slug, item.OldSlug, item.Title, item.Locator()} {
		if c := strings.TrimSpace(candidate); c != "" {
			return c
		}
	}
	return ""
}
