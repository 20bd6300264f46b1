package registrar_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cointist/internal/artifacts"
	"cointist/internal/model"
	"cointist/internal/registrar"
	"cointist/internal/services"
	"cointist/internal/testsupport"
)

func newRegistrar(t *testing.T, launcher *testsupport.Launcher, items ...model.Item) (*registrar.Registrar, *artifacts.Dir, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	testsupport.WriteSnapshot(t, cfg.Paths.SnapshotFile, items...)
	store := artifacts.NewDir(cfg.Paths.ArtifactDir)
	reg := registrar.New(registrar.Options{
		SnapshotFile: cfg.Paths.SnapshotFile,
		WorkerLogDir: cfg.WorkerLogDir(),
		Store:        store,
		Launcher:     launcher,
		Now:          func() time.Time { return time.UnixMilli(1714557600000) },
		NewToken:     func() string { return "token-1" },
	})
	return reg, store, cfg.WorkerLogDir()
}

func TestRegisterDerivesSlugFromURLAndDispatches(t *testing.T) {
	launcher := &testsupport.Launcher{}
	reg, store, logDir := newRegistrar(t, launcher, model.Item{Title: "BTC rallies", URL: "https://x.example/btc-rallies-1"})

	result, err := reg.Register(context.Background(), []string{"BTC rallies"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.Token != "token-1" || len(result.Items) != 1 {
		t.Fatalf("unexpected registration %+v", result)
	}
	item := result.Items[0]
	if item.Slug != "btc-rallies-1" || !item.Dispatched || item.PID == 0 {
		t.Fatalf("unexpected item result %+v", item)
	}

	specs := launcher.Specs()
	if len(specs) != 1 {
		t.Fatalf("expected one worker dispatched, got %d", len(specs))
	}
	spec := specs[0]
	if spec.Locator != "https://x.example/btc-rallies-1" || spec.Token != "token-1" || spec.Slug != "btc-rallies-1" {
		t.Fatalf("unexpected spec %+v", spec)
	}
	if spec.OutputPath != store.Path("summary-1714557600000-btc-rallies-1.json") {
		t.Fatalf("unexpected output path %s", spec.OutputPath)
	}
	if spec.LogPath != filepath.Join(logDir, "worker-1714557600000-btc-rallies-1.log") {
		t.Fatalf("unexpected log path %s", spec.LogPath)
	}

	if !store.Exists("selection-1714557600000.json") {
		t.Fatal("selection manifest not written")
	}
	data, err := os.ReadFile(result.InvocationPath)
	if err != nil {
		t.Fatalf("read invocation: %v", err)
	}
	inv, err := model.ParseInvocation(data)
	if err != nil {
		t.Fatalf("parse invocation: %v", err)
	}
	if inv.Token != "token-1" || len(inv.Items) != 1 || inv.Items[0].Slug != "btc-rallies-1" {
		t.Fatalf("unexpected invocation %+v", inv)
	}
	if len(inv.Workers) != 1 || !inv.Workers[0].Dispatched {
		t.Fatalf("unexpected worker records %+v", inv.Workers)
	}
}

func TestRegisterPartialDispatchSucceeds(t *testing.T) {
	launcher := &testsupport.Launcher{Fail: map[string]error{"b": errors.New("exec format error")}}
	reg, _, _ := newRegistrar(t, launcher,
		model.Item{Slug: "a", URL: "https://x.example/a"},
		model.Item{Slug: "b", URL: "https://x.example/b"},
	)

	result, err := reg.Register(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.Dispatched() != 1 {
		t.Fatalf("expected one dispatched worker, got %d", result.Dispatched())
	}
	if result.Items[1].Dispatched || !strings.Contains(result.Items[1].Error, "exec format error") {
		t.Fatalf("expected failure recorded for b, got %+v", result.Items[1])
	}
}

func TestRegisterRejections(t *testing.T) {
	tests := []struct {
		name   string
		items  []model.Item
		keys   []string
		marker error
	}{
		{"no match", []model.Item{{Slug: "a", URL: "https://x.example/a"}}, []string{"zzz"}, services.ErrNotFound},
		{"missing locator", []model.Item{{Slug: "a", URL: "https://x.example/a"}, {Slug: "b"}}, []string{"a", "b"}, services.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			launcher := &testsupport.Launcher{}
			reg, store, _ := newRegistrar(t, launcher, tt.items...)
			_, err := reg.Register(context.Background(), tt.keys)
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
			if len(launcher.Specs()) != 0 {
				t.Fatal("no worker may be dispatched on rejection")
			}
			entries, _ := store.List(context.Background(), "")
			if len(entries) != 0 {
				t.Fatalf("no artifacts may be written on rejection, got %+v", entries)
			}
		})
	}
}

func TestRegisterUnreadableSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reg := registrar.New(registrar.Options{
		SnapshotFile: filepath.Join(testsupport.BaseDir(cfg), "missing.json"),
		Store:        artifacts.NewDir(cfg.Paths.ArtifactDir),
		Launcher:     &testsupport.Launcher{},
	})
	if _, err := reg.Register(context.Background(), []string{"a"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRegisterDuplicateSlugsGetDistinctFiles(t *testing.T) {
	launcher := &testsupport.Launcher{}
	reg, _, _ := newRegistrar(t, launcher,
		model.Item{Title: "Same", URL: "https://x.example/one/story"},
		model.Item{Title: "Other", URL: "https://x.example/two/story"},
	)
	if _, err := reg.Register(context.Background(), []string{"Same", "Other"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	specs := launcher.Specs()
	if len(specs) != 2 || specs[0].OutputPath == specs[1].OutputPath {
		t.Fatalf("expected distinct output paths, got %+v", specs)
	}
}

func TestLoadInvocation(t *testing.T) {
	launcher := &testsupport.Launcher{}
	reg, store, _ := newRegistrar(t, launcher, model.Item{Slug: "a", URL: "https://x.example/a"})
	if _, err := reg.Register(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	inv, name, err := registrar.LoadInvocation(context.Background(), store, "token-1")
	if err != nil {
		t.Fatalf("LoadInvocation: %v", err)
	}
	if inv.Token != "token-1" || name != "invocation-1714557600000-token-1.json" {
		t.Fatalf("unexpected invocation %+v from %s", inv, name)
	}

	if _, _, err := registrar.LoadInvocation(context.Background(), store, "other"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRegistrationJSONShape(t *testing.T) {
	reg := registrar.Registration{
		Token: "t",
		Items: []registrar.ItemResult{{Key: "k", Slug: "s", ID: model.NewID(5), Dispatched: true, PID: 9}},
	}
	data, err := json.Marshal(reg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, fragment := range []string{`"token":"t"`, `"id":5`, `"pid":9`, `"dispatched":true`} {
		if !strings.Contains(string(data), fragment) {
			t.Fatalf("expected %s in %s", fragment, data)
		}
	}
}
