//go:build !windows

package pipeline_test

import (
	"context"
	"testing"
	"time"

	"cointist/internal/catalog"
	"cointist/internal/export"
	"cointist/internal/model"
	"cointist/internal/pipeline"
	"cointist/internal/testsupport"
)

func TestRunSummaryExportEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedWorker())
	testsupport.WriteSnapshot(t, cfg.Paths.SnapshotFile,
		model.Item{Slug: "btc-rallies", Title: "BTC rallies", URL: "https://x.example/btc-rallies"},
		model.Item{Slug: "eth-dips", Title: "ETH dips", URL: "https://x.example/eth-dips"},
	)

	p, err := pipeline.Open(ctx, cfg, nil, pipeline.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()
	if p.Catalog == nil {
		t.Fatal("expected sqlite catalog to open")
	}
	testsupport.SeedArticles(t, p.Catalog, catalog.Article{ID: 501, Slug: "btc-rallies", Title: "BTC rallies"})

	reg, err := p.Registrar.Register(ctx, []string{"btc-rallies"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Dispatched() != 1 {
		t.Fatalf("expected one dispatched worker, got %+v", reg.Items)
	}

	result, err := p.Aggregator.Wait(ctx, nil, 10*time.Second, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !result.Found {
		t.Fatalf("expected summary, got %+v", result)
	}
	items := result.Summary.Items
	if len(items) != 1 || items[0].Slug != "btc-rallies" {
		t.Fatalf("unexpected summary items %+v", items)
	}
	if got := items[0].ID.Int64(); got != 501 {
		t.Fatalf("expected backfilled id 501, got %d", got)
	}

	exported, err := p.Export.Export(ctx, items)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	doc, err := export.Load(exported.Path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Count != 1 || doc.Items[0].ID.Int64() != 501 {
		t.Fatalf("unexpected export document %+v", doc)
	}
	if entry, ok := p.SlugMap.Lookup("btc-rallies"); !ok || entry.ID.Int64() != 501 {
		t.Fatalf("expected slug map entry, got %+v ok=%v", entry, ok)
	}
}
