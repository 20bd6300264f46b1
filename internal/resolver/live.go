package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"cointist/internal/catalog"
	"cointist/internal/model"
)

// LiveQuery asks the persistent catalog by slug, previous slug and title.
type LiveQuery struct {
	directory catalog.Directory
	timeout   time.Duration
	limiter   *rate.Limiter
}

// NewLiveQuery returns the liveQuery tier. A positive timeout bounds each
// item; a positive rps limits catalog queries across the batch.
func NewLiveQuery(directory catalog.Directory, timeout time.Duration, rps float64) *LiveQuery {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}
	return &LiveQuery{
		directory: directory,
		timeout:   timeout,
		limiter:   rate.NewLimiter(limit, burst),
	}
}

func (q *LiveQuery) Tier() model.Tier { return model.TierLiveQuery }

// Resolve returns the first catalog hit. Recency is the article's update time.
func (q *LiveQuery) Resolve(ctx context.Context, item model.Item) (model.Outcome, bool, error) {
	if q.directory == nil {
		return model.Outcome{}, false, nil
	}
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	lookups := []struct {
		source string
		key    string
		query  func(context.Context, string) (catalog.Article, bool, error)
	}{
		{"slug", item.Slug, q.directory.BySlug},
		{"oldSlug", item.OldSlug, q.directory.BySlug},
		{"title", item.Title, q.directory.ByTitle},
	}
	for _, lookup := range lookups {
		key := strings.TrimSpace(lookup.key)
		if key == "" {
			continue
		}
		if err := q.limiter.Wait(ctx); err != nil {
			return model.Outcome{}, false, fmt.Errorf("rate limit: %w", err)
		}
		article, found, err := lookup.query(ctx, key)
		if err != nil {
			return model.Outcome{}, false, err
		}
		if !found || article.ID <= 0 {
			continue
		}
		return model.Outcome{
			ID:      model.NewID(article.ID),
			Slug:    article.Slug,
			Tier:    model.TierLiveQuery,
			Recency: article.UpdatedAt,
			Source:  "catalog:" + lookup.source,
		}, true, nil
	}
	return model.Outcome{}, false, nil
}
