package catalog

import (
	"context"
	"fmt"
	"strings"

	"cointist/internal/model"
	"cointist/internal/textutil"
)

// ImportResult summarizes an Import call.
type ImportResult struct {
	Upserted int      `json:"upserted"`
	Skipped  []int    `json:"skipped,omitempty"`
	Slugs    []string `json:"slugs,omitempty"`
}

// Import upserts items into dir. Items without an id are assigned one by the
// store; items that yield no slug are skipped by index.
func Import(ctx context.Context, dir Directory, items []model.Item) (ImportResult, error) {
	var result ImportResult
	for idx, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		slug := textutil.DeriveSlug(item.Slug, item.Locator(), item.Title, "")
		if slug == "" {
			result.Skipped = append(result.Skipped, idx)
			continue
		}
		saved, err := dir.Upsert(ctx, Article{
			ID:      item.ID.Int64(),
			Slug:    slug,
			OldSlug: item.OldSlug,
			Title:   item.Title,
			Excerpt: item.Excerpt,
		})
		if err != nil {
			return result, fmt.Errorf("import item %d: %w", idx, err)
		}
		result.Upserted++
		result.Slugs = append(result.Slugs, saved.Slug)
	}
	return result, nil
}

// Lookup resolves key as an id, then a slug, then an exact title.
func Lookup(ctx context.Context, dir Directory, key string) (Article, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Article{}, false, nil
	}
	if id := model.ParseIDString(key); id.Valid() {
		article, found, err := dir.ByID(ctx, id.Int64())
		if err != nil || found {
			return article, found, err
		}
	}
	article, found, err := dir.BySlug(ctx, key)
	if err != nil || found {
		return article, found, err
	}
	return dir.ByTitle(ctx, key)
}

// Item converts an article into a pipeline item.
func (a Article) Item() model.Item {
	return model.Item{
		ID:      model.NewID(a.ID),
		Slug:    a.Slug,
		OldSlug: a.OldSlug,
		Title:   a.Title,
		Excerpt: a.Excerpt,
	}
}
