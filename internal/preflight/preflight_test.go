package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"cointist/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckWorker(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "worker.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	if result := CheckWorker(config.Worker{Command: script + " --fast"}); !result.Passed || result.Detail != script {
		t.Fatalf("expected pass with program detail, got %+v", result)
	}
	if result := CheckWorker(config.Worker{}); result.Passed {
		t.Fatal("expected failure for empty command")
	}
	if result := CheckWorker(config.Worker{Command: filepath.Join(dir, "missing")}); result.Passed {
		t.Fatal("expected failure for missing executable")
	}
}

func TestCheckPopulateCommand(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "populate.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	if result := CheckPopulateCommand(script + " --slug-map out.json"); !result.Passed {
		t.Fatalf("expected pass, got %+v", result)
	}
	if result := CheckPopulateCommand("clearly-not-present-binary"); result.Passed {
		t.Fatal("expected failure for missing binary")
	}
	if result := CheckPopulateCommand(`populate "unterminated`); result.Passed {
		t.Fatal("expected failure for unbalanced quote")
	}
}

func TestCheckNtfy_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/runs/json" || r.URL.Query().Get("poll") != "1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckNtfy(context.Background(), srv.URL+"/runs")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckNtfy_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	result := CheckNtfy(context.Background(), srv.URL+"/runs")
	if result.Passed {
		t.Fatal("expected failure for forbidden topic")
	}
	if result.Detail != "topic requires authentication" {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ArtifactDir = filepath.Join(base, "tmp")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := os.MkdirAll(cfg.Paths.ArtifactDir, 0o755); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected directory and worker checks only, got %+v", results)
	}
	failed := Failed(results)
	if len(failed) != 2 {
		t.Fatalf("expected missing worker log dir and empty worker command to fail, got %+v", failed)
	}
	if failed[0].Name != "Worker log directory" || failed[1].Name != "Worker" {
		t.Fatalf("unexpected failures %+v", failed)
	}
}

func TestRunAll_IncludesNtfyWhenConfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = "http://127.0.0.1:1/runs"

	results := RunAll(context.Background(), &cfg)
	last := results[len(results)-1]
	if last.Name != "Notifications" {
		t.Fatalf("expected ntfy check last, got %+v", results)
	}
}
