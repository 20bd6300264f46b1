package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"cointist/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("COINTIST_STORE_DSN", "")
	t.Setenv("COINTIST_WORKER_COMMAND", "")
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantArtifacts := filepath.Join(tempHome, ".local", "share", "cointist", "tmp")
	if cfg.Paths.ArtifactDir != wantArtifacts {
		t.Fatalf("unexpected artifact dir: got %q want %q", cfg.Paths.ArtifactDir, wantArtifacts)
	}
	if cfg.WorkerLogDir() != filepath.Join(tempHome, ".local", "share", "cointist", "logs", "workers") {
		t.Fatalf("unexpected worker log dir: %q", cfg.WorkerLogDir())
	}
	if cfg.Store.Driver != config.StoreDriverSQLite {
		t.Fatalf("expected sqlite driver by default, got %q", cfg.Store.Driver)
	}
	if cfg.RunWindow() != 2*time.Minute {
		t.Fatalf("unexpected run window: %s", cfg.RunWindow())
	}
	if !cfg.Aggregator.AnchorOnInvocation {
		t.Fatal("expected invocation anchoring enabled by default")
	}
	if cfg.Resolver.FuzzyMinOverlap != 0.5 || cfg.Resolver.FuzzyShortOverlap != 0.4 {
		t.Fatalf("unexpected fuzzy thresholds: %+v", cfg.Resolver)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.ArtifactDir, cfg.Paths.LogDir, cfg.WorkerLogDir(), filepath.Dir(cfg.Paths.ExportFile)} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "cointist.toml")

	type payload struct {
		Paths struct {
			ArtifactDir string `toml:"artifact_dir"`
		} `toml:"paths"`
		Worker struct {
			Command string `toml:"command"`
		} `toml:"worker"`
		Aggregator struct {
			WindowSeconds int `toml:"window_seconds"`
		} `toml:"aggregator"`
		Store struct {
			Driver string `toml:"driver"`
			DSN    string `toml:"dsn"`
		} `toml:"store"`
	}
	custom := payload{}
	custom.Paths.ArtifactDir = filepath.Join(tempDir, "artifacts")
	custom.Worker.Command = `node "scripts/extract article.js" --fast`
	custom.Aggregator.WindowSeconds = 30
	custom.Store.Driver = "postgresql"
	custom.Store.DSN = "postgres://cointist@localhost/cointist"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.ArtifactDir != custom.Paths.ArtifactDir {
		t.Fatalf("unexpected artifact dir: %q", cfg.Paths.ArtifactDir)
	}
	if cfg.RunWindow() != 30*time.Second {
		t.Fatalf("unexpected window: %s", cfg.RunWindow())
	}
	if cfg.Store.Driver != config.StoreDriverPostgres {
		t.Fatalf("expected postgres alias to normalize, got %q", cfg.Store.Driver)
	}
}

func TestEnvFallbacks(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "cointist.toml")
	if err := os.WriteFile(configPath, []byte("[store]\ndriver = \"postgres\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("COINTIST_STORE_DSN", "postgres://env@localhost/db")
	t.Setenv("COINTIST_WORKER_COMMAND", "extract-worker --quiet")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Store.DSN != "postgres://env@localhost/db" {
		t.Fatalf("expected DSN from env, got %q", cfg.Store.DSN)
	}
	if cfg.Worker.Command != "extract-worker --quiet" {
		t.Fatalf("expected worker command from env, got %q", cfg.Worker.Command)
	}
}

func TestCreateSample(t *testing.T) {
	tempDir := t.TempDir()
	target := filepath.Join(tempDir, "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[aggregator]") {
		t.Fatal("sample config missing aggregator section")
	}

	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if decoded.Aggregator.WindowSeconds != 120 {
		t.Fatalf("unexpected sample window: %d", decoded.Aggregator.WindowSeconds)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "unbalanced worker quote",
			mutate:  func(c *config.Config) { c.Worker.Command = `node "unterminated` },
			wantErr: "worker.command",
		},
		{
			name:    "negative window",
			mutate:  func(c *config.Config) { c.Aggregator.WindowSeconds = -1 },
			wantErr: "aggregator.window_seconds",
		},
		{
			name:    "fuzzy overlap out of range",
			mutate:  func(c *config.Config) { c.Resolver.FuzzyMinOverlap = 1.5 },
			wantErr: "resolver.fuzzy_min_overlap",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *config.Config) { c.Store.Driver = config.StoreDriverPostgres; c.Store.DSN = "" },
			wantErr: "store.dsn",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *config.Config) { c.Store.Driver = "mysql" },
			wantErr: "store.driver",
		},
		{
			name:    "ntfy topic without scheme",
			mutate:  func(c *config.Config) { c.Notifications.NtfyTopic = "ntfy.sh/runs" },
			wantErr: "notifications.ntfy_topic",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *config.Config) { c.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
