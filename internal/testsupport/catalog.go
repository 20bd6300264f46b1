package testsupport

import (
	"context"
	"testing"

	"cointist/internal/catalog"
	"cointist/internal/config"
)

// MustOpenCatalog opens the SQLite catalog configured by cfg and closes it
// when the test finishes.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.SQLite {
	t.Helper()

	store, err := catalog.OpenSQLite(context.Background(), cfg.Store.Path)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SeedArticles upserts articles into dir, failing the test on error.
func SeedArticles(t testing.TB, dir catalog.Directory, articles ...catalog.Article) []catalog.Article {
	t.Helper()

	saved := make([]catalog.Article, 0, len(articles))
	for _, article := range articles {
		out, err := dir.Upsert(context.Background(), article)
		if err != nil {
			t.Fatalf("seed article %q: %v", article.Slug, err)
		}
		saved = append(saved, out)
	}
	return saved
}
