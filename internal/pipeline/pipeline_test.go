package pipeline_test

import (
	"context"
	"strings"
	"testing"

	"cointist/internal/model"
	"cointist/internal/pipeline"
	"cointist/internal/testsupport"
)

func TestOpenWithoutCatalogSkipsLiveQuery(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p, err := pipeline.Open(context.Background(), cfg, nil, pipeline.Options{
		Launcher:       &testsupport.Launcher{},
		WithoutCatalog: true,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	tiers := p.Resolver.Tiers()
	want := []model.Tier{model.TierDirectMap, model.TierFuzzyTitle, model.TierLogScan}
	if len(tiers) != len(want) {
		t.Fatalf("expected tiers %v, got %v", want, tiers)
	}
	for i := range want {
		if tiers[i] != want[i] {
			t.Fatalf("expected tiers %v, got %v", want, tiers)
		}
	}
	if p.Catalog != nil {
		t.Fatal("expected no catalog")
	}
	deps := p.APIDeps()
	if deps.Registrar == nil || deps.Summaries == nil || deps.Exporter == nil || deps.Alive == nil {
		t.Fatalf("expected API deps wired, got %+v", deps)
	}
}

func TestOpenWithCatalogEnablesLiveQuery(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p, err := pipeline.Open(context.Background(), cfg, nil, pipeline.Options{Launcher: &testsupport.Launcher{}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	if p.Catalog == nil {
		t.Fatal("expected sqlite catalog to open")
	}
	tiers := p.Resolver.Tiers()
	if len(tiers) != 4 || tiers[3] != model.TierLiveQuery {
		t.Fatalf("expected liveQuery as the last tier, got %v", tiers)
	}
}

func TestMissingWorkerCommandFailsLaunchesOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkerCommand(""))
	testsupport.WriteSnapshot(t, cfg.Paths.SnapshotFile, model.Item{Slug: "a", URL: "https://x.example/a"})

	p, err := pipeline.Open(context.Background(), cfg, nil, pipeline.Options{WithoutCatalog: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	reg, err := p.Registrar.Register(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Dispatched() != 0 || !strings.Contains(reg.Items[0].Error, "worker.command is empty") {
		t.Fatalf("expected launch failure recorded, got %+v", reg.Items)
	}
}
