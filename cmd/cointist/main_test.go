package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cointist/internal/artifacts"
	"cointist/internal/export"
	"cointist/internal/model"
	"cointist/internal/registrar"
	"cointist/internal/services"
	"cointist/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected init output: %q", out)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}

	env := setupCLITestEnv(t)
	out, _, err = runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") || !strings.Contains(out, env.cfg.Paths.ArtifactDir) {
		t.Fatalf("unexpected validate output: %q", out)
	}
}

func TestRunStartAndStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteSnapshot(t, env.cfg.Paths.SnapshotFile, model.Item{Slug: "btc", Title: "BTC rallies", URL: "https://x.example/btc"})

	out, _, err := runCLI(t, []string{"run", "start", "--json", "BTC rallies"}, env.configPath)
	if err != nil {
		t.Fatalf("run start: %v", err)
	}
	var reg registrar.Registration
	if err := json.Unmarshal([]byte(out), &reg); err != nil {
		t.Fatalf("decode registration %q: %v", out, err)
	}
	if reg.Token == "" || reg.Dispatched() != 1 {
		t.Fatalf("unexpected registration %+v", reg)
	}

	out, _, err = runCLI(t, []string{"run", "status", reg.Token}, env.configPath)
	if err != nil {
		t.Fatalf("run status: %v", err)
	}
	if !strings.Contains(out, reg.Token) || !strings.Contains(out, "btc") {
		t.Fatalf("unexpected status output: %q", out)
	}

	testsupport.WriteText(t, reg.Items[0].LogPath, "one\ntwo\nthree\n")
	out, _, err = runCLI(t, []string{"run", "logs", "-n", "2", reg.Token}, env.configPath)
	if err != nil {
		t.Fatalf("run logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected logs output: %q", out)
	}

	_, _, err = runCLI(t, []string{"run", "status", "nope"}, env.configPath)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown token, got %v", err)
	}
}

func TestSummaryAndResolve(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithoutAnchor())

	out, _, err := runCLI(t, []string{"summary", "--no-catalog"}, env.configPath)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(out, "No summary") {
		t.Fatalf("expected no summary, got %q", out)
	}

	testsupport.WriteSummary(t, env.cfg.Paths.ArtifactDir, time.Now(), "btc", time.Time{},
		model.Item{ID: model.NewID(7), Slug: "btc", Title: "BTC rallies to record"})
	out, _, err = runCLI(t, []string{"summary", "--no-catalog"}, env.configPath)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !strings.Contains(out, "BTC rallies to record") || !strings.Contains(out, "1 items from 1 files") {
		t.Fatalf("unexpected summary output: %q", out)
	}

	input := filepath.Join(testsupport.BaseDir(env.cfg), "batch.json")
	testsupport.WriteJSON(t, input, []map[string]any{{"slug": "btc"}, {"slug": "unknown"}})
	out, _, err = runCLI(t, []string{"resolve", "--no-catalog", "--json", input}, env.configPath)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var resp struct {
		Items      []model.Item    `json:"items"`
		Resolved   []model.Outcome `json:"resolved"`
		Unresolved []int           `json:"unresolved"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode resolve output %q: %v", out, err)
	}
	if resp.Items[0].ID.Int64() != 7 || len(resp.Unresolved) != 1 || resp.Unresolved[0] != 1 {
		t.Fatalf("unexpected resolve output %+v", resp)
	}

	if _, _, err := runCLI(t, []string{"resolve", "--tier", "bogus", input}, env.configPath); err == nil {
		t.Fatal("expected unknown tier to fail")
	}
}

func TestExportCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	base := testsupport.BaseDir(env.cfg)

	bad := filepath.Join(base, "bad.json")
	testsupport.WriteJSON(t, bad, map[string]any{"items": []map[string]any{{"id": 1, "slug": "a"}, {"slug": "b", "title": "Missing"}}})
	_, stderr, err := runCLI(t, []string{"export", bad}, env.configPath)
	var rejection *export.RejectionError
	if !errors.As(err, &rejection) || rejection.MissingCount != 1 {
		t.Fatalf("expected rejection, got %v", err)
	}
	if !strings.Contains(stderr, "Export rejected") || !strings.Contains(stderr, "Missing") {
		t.Fatalf("unexpected rejection output: %q", stderr)
	}

	good := filepath.Join(base, "good.json")
	testsupport.WriteJSON(t, good, []map[string]any{{"id": "42", "slug": "a"}})
	out, _, err := runCLI(t, []string{"export", good}, env.configPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "Exported 1 items") {
		t.Fatalf("unexpected export output: %q", out)
	}
	doc, err := export.Load(env.cfg.Paths.ExportFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Count != 1 || doc.Items[0].ID.Int64() != 42 {
		t.Fatalf("unexpected export document %+v", doc)
	}
}

func TestCatalogImportLookupSearch(t *testing.T) {
	env := setupCLITestEnv(t)
	input := filepath.Join(testsupport.BaseDir(env.cfg), "articles.json")
	testsupport.WriteJSON(t, input, []map[string]any{
		{"id": 11, "slug": "btc-rallies", "title": "Bitcoin Rallies To Record High"},
		{"id": 12, "url": "https://x.example/news/eth-slides", "title": "Ether Slides"},
		{"title": ""},
	})

	out, _, err := runCLI(t, []string{"catalog", "import", input}, env.configPath)
	if err != nil {
		t.Fatalf("catalog import: %v", err)
	}
	if !strings.Contains(out, "Imported 2 articles (1 skipped)") {
		t.Fatalf("unexpected import output: %q", out)
	}

	for _, key := range []string{"11", "btc-rallies", "bitcoin rallies to record high"} {
		out, _, err = runCLI(t, []string{"catalog", "lookup", key}, env.configPath)
		if err != nil {
			t.Fatalf("catalog lookup %q: %v", key, err)
		}
		if !strings.Contains(out, "btc-rallies") {
			t.Fatalf("lookup %q: unexpected output %q", key, out)
		}
	}

	_, _, err = runCLI(t, []string{"catalog", "lookup", "missing"}, env.configPath)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	out, _, err = runCLI(t, []string{"catalog", "search", "Bitcoin Rallies To Record"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog search: %v", err)
	}
	if !strings.Contains(out, "btc-rallies") || strings.Contains(out, "eth-slides") {
		t.Fatalf("unexpected search output: %q", out)
	}
}

func TestArtifactsPrune(t *testing.T) {
	env := setupCLITestEnv(t)
	old := testsupport.WriteSummary(t, env.cfg.Paths.ArtifactDir, time.Now().Add(-48*time.Hour), "old", time.Time{})
	fresh := testsupport.WriteSummary(t, env.cfg.Paths.ArtifactDir, time.Now(), "fresh", time.Time{})
	oldLog := testsupport.WriteWorkerLog(t, env.cfg.WorkerLogDir(), time.Now().Add(-48*time.Hour), "old", "done")

	out, _, err := runCLI(t, []string{"artifacts", "prune", "--max-age", "24h"}, env.configPath)
	if err != nil {
		t.Fatalf("artifacts prune: %v", err)
	}
	if !strings.Contains(out, "Removed 2 artifacts") {
		t.Fatalf("unexpected prune output: %q", out)
	}
	store := artifacts.NewDir(env.cfg.Paths.ArtifactDir)
	if store.Exists(old) || !store.Exists(fresh) {
		t.Fatal("expected only the stale summary removed")
	}
	if _, err := os.Stat(oldLog); !os.IsNotExist(err) {
		t.Fatalf("expected stale worker log removed, stat err=%v", err)
	}
}

func TestStatusReportsComponents(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteSnapshot(t, env.cfg.Paths.SnapshotFile, model.Item{Slug: "a", URL: "https://x.example/a"})

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Snapshot:", "1 items", "Worker:", "/bin/true", "Catalog:", "0 articles", "Slug map:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q: %q", want, out)
		}
	}
}
