package catalog_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"cointist/internal/catalog"
	"cointist/internal/model"
	"cointist/internal/testsupport"
	"cointist/internal/textutil"
)

func TestUpsertAndLookups(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	testsupport.SeedArticles(t, store, catalog.Article{
		ID:    42,
		Slug:  "btc-rallies",
		Title: "Bitcoin Rallies Past Record High",
	})

	byID, found, err := store.ByID(ctx, 42)
	if err != nil || !found {
		t.Fatalf("ByID: found=%v err=%v", found, err)
	}
	if byID.Slug != "btc-rallies" {
		t.Fatalf("expected slug btc-rallies, got %q", byID.Slug)
	}

	bySlug, found, err := store.BySlug(ctx, "btc-rallies")
	if err != nil || !found || bySlug.ID != 42 {
		t.Fatalf("BySlug: article=%+v found=%v err=%v", bySlug, found, err)
	}

	byTitle, found, err := store.ByTitle(ctx, "  bitcoin rallies past record high ")
	if err != nil || !found || byTitle.ID != 42 {
		t.Fatalf("ByTitle: article=%+v found=%v err=%v", byTitle, found, err)
	}
}

func TestLookupMissIsNotAnError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	if _, found, err := store.ByID(ctx, 7); err != nil || found {
		t.Fatalf("ByID miss: found=%v err=%v", found, err)
	}
	if _, found, err := store.BySlug(ctx, "nope"); err != nil || found {
		t.Fatalf("BySlug miss: found=%v err=%v", found, err)
	}
	if _, found, err := store.ByTitle(ctx, ""); err != nil || found {
		t.Fatalf("ByTitle empty: found=%v err=%v", found, err)
	}
}

func TestUpsertSlugChangeKeepsOldSlug(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	testsupport.SeedArticles(t, store,
		catalog.Article{ID: 9, Slug: "draft-headline", Title: "Draft"},
		catalog.Article{ID: 9, Slug: "final-headline"},
	)

	article, found, err := store.BySlug(ctx, "draft-headline")
	if err != nil || !found {
		t.Fatalf("BySlug old slug: found=%v err=%v", found, err)
	}
	if article.Slug != "final-headline" || article.OldSlug != "draft-headline" {
		t.Fatalf("unexpected slugs: %+v", article)
	}
	if article.Title != "Draft" {
		t.Fatalf("empty title should not overwrite, got %q", article.Title)
	}
}

func TestUpsertAssignsID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	saved := testsupport.SeedArticles(t, store, catalog.Article{Slug: "fresh"})
	if saved[0].ID <= 0 {
		t.Fatalf("expected assigned id, got %d", saved[0].ID)
	}
	again := testsupport.SeedArticles(t, store, catalog.Article{Slug: "fresh", Title: "Fresh"})
	if again[0].ID != saved[0].ID {
		t.Fatalf("upsert by slug changed id: %d != %d", again[0].ID, saved[0].ID)
	}
	count, err := store.Count(context.Background())
	if err != nil || count != 1 {
		t.Fatalf("Count: %d err=%v", count, err)
	}
}

func TestUpsertRejectsMissingSlug(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	if _, err := store.Upsert(context.Background(), catalog.Article{ID: 1, Title: "No slug"}); err == nil {
		t.Fatal("expected error for missing slug")
	}
}

func TestSearchTitleRanksByOverlap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	testsupport.SeedArticles(t, store,
		catalog.Article{ID: 1, Slug: "rally", Title: "Bitcoin Rallies Past Record High"},
		catalog.Article{ID: 2, Slug: "miners", Title: "Bitcoin Miners Expand"},
		catalog.Article{ID: 3, Slug: "gas", Title: "Ethereum Gas Fees Fall"},
		catalog.Article{ID: 4, Slug: "rally-toward", Title: "Bitcoin Rallies Toward Record"},
	)

	matches, err := store.SearchTitle(context.Background(), "bitcoin rallies past record high", textutil.DefaultMatchPolicy(), 10)
	if err != nil {
		t.Fatalf("SearchTitle: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %+v", matches)
	}
	if matches[0].Article.ID != 1 {
		t.Fatalf("expected exact title first, got %+v", matches[0])
	}
	for _, match := range matches {
		if match.Article.ID == 2 || match.Article.ID == 3 {
			t.Fatalf("unexpected match %+v", match)
		}
	}
}

func TestReopenDetectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	store, err := catalog.OpenSQLite(ctx, cfg.Store.Path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	_ = store.Close()

	reopened, err := catalog.OpenSQLite(ctx, cfg.Store.Path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = reopened.Close()

	db, err := sql.Open("sqlite", cfg.Store.Path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	if _, err := catalog.OpenSQLite(ctx, cfg.Store.Path); !errors.Is(err, catalog.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestImportAndLookup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	result, err := catalog.Import(ctx, store, []model.Item{
		{ID: model.NewID(11), URL: "https://news.example/2024/eth-upgrade.html", Title: "ETH upgrade"},
		{Title: "Solana Outage Report"},
		{},
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if result.Upserted != 2 || len(result.Skipped) != 1 || result.Skipped[0] != 2 {
		t.Fatalf("unexpected import result %+v", result)
	}

	article, found, err := catalog.Lookup(ctx, store, "11")
	if err != nil || !found || article.Slug != "eth-upgrade" {
		t.Fatalf("Lookup by id: %+v found=%v err=%v", article, found, err)
	}
	article, found, err = catalog.Lookup(ctx, store, "solana-outage-report")
	if err != nil || !found {
		t.Fatalf("Lookup by slug: found=%v err=%v", found, err)
	}
	item := article.Item()
	if !item.Resolved() || item.Slug != "solana-outage-report" {
		t.Fatalf("unexpected item %+v", item)
	}
}
