package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"cointist/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ArtifactDir = filepath.Join(base, "artifacts")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SnapshotFile = filepath.Join(base, "snapshot", "selection.json")
	cfgVal.Paths.ExportFile = filepath.Join(base, "final", "selected.json")
	cfgVal.Paths.SlugMapFile = filepath.Join(base, "final", "slug_map.json")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Store.Driver = config.StoreDriverSQLite
	cfgVal.Store.Path = filepath.Join(base, "catalog.db")
	cfgVal.Worker.Command = "/bin/true"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithWorkerCommand overrides the worker command line.
func WithWorkerCommand(command string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Worker.Command = command
	}
}

// WithWindow overrides the run-boundary window.
func WithWindow(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Aggregator.WindowSeconds = seconds
	}
}

// WithAPIToken requires bearer auth on the API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithoutAnchor disables invocation anchoring of the run boundary.
func WithoutAnchor() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Aggregator.AnchorOnInvocation = false
	}
}

// WithStubbedWorker installs a shell worker that writes a one-item summary
// to its --out path and prints the terminal marker, then points the worker
// command at it.
func WithStubbedWorker() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte(`#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    --url) url="$2"; shift 2 ;;
    --out) out="$2"; shift 2 ;;
    --slug) slug="$2"; shift 2 ;;
    --token) token="$2"; shift 2 ;;
    *) shift ;;
  esac
done
printf '{"token":"%s","items":[{"slug":"%s","url":"%s"}]}' "$token" "$slug" "$url" > "$out"
echo "final summary: $out"
`)
		target := filepath.Join(binDir, "stub-worker")
		if err := os.WriteFile(target, script, 0o755); err != nil {
			b.t.Fatalf("write stub worker: %v", err)
		}
		b.cfg.Worker.Command = target
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ArtifactDir)
}
