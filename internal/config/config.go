package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, file, and bind address configuration.
type Paths struct {
	ArtifactDir  string `toml:"artifact_dir"`
	LogDir       string `toml:"log_dir"`
	SnapshotFile string `toml:"snapshot_file"`
	ExportFile   string `toml:"export_file"`
	SlugMapFile  string `toml:"slug_map_file"`
	APIBind      string `toml:"api_bind"`

	// APIToken, when set, is required as a bearer token on every API request.
	APIToken string `toml:"api_token"`
}

// Worker describes the out-of-process extraction worker launched per item.
type Worker struct {
	// Command is a shell-quoted command line, e.g. "node scripts/extract.js --fast".
	Command   string   `toml:"command"`
	ExtraArgs []string `toml:"extra_args"`
	Env       []string `toml:"env"`
}

// Aggregator contains summary discovery settings.
type Aggregator struct {
	WindowSeconds      int  `toml:"window_seconds"`
	AnchorOnInvocation bool `toml:"anchor_on_invocation"`
	PollIntervalMillis int  `toml:"poll_interval_ms"`
	WaitTimeoutSeconds int  `toml:"wait_timeout_seconds"`
	Backfill           bool `toml:"backfill"`
}

// Resolver contains identity resolution tuning.
type Resolver struct {
	LogScanTimeoutMillis   int     `toml:"log_scan_timeout_ms"`
	LiveQueryTimeoutMillis int     `toml:"live_query_timeout_ms"`
	LiveQueryRPS           float64 `toml:"live_query_rps"`
	Concurrency            int     `toml:"concurrency"`
	FuzzyMinOverlap        float64 `toml:"fuzzy_min_overlap"`
	FuzzyShortOverlap      float64 `toml:"fuzzy_short_overlap"`
	FuzzyShortTokens       int     `toml:"fuzzy_short_tokens"`
	FuzzyMinShared         int     `toml:"fuzzy_min_shared"`
}

// Export contains export gate settings.
type Export struct {
	// PopulateCommand optionally replaces the in-process backfill with an
	// external step that rewrites the slug map.
	PopulateCommand        string `toml:"populate_command"`
	PopulateTimeoutSeconds int    `toml:"populate_timeout_seconds"`
}

// Notifications contains ntfy delivery settings.
type Notifications struct {
	// NtfyTopic is the full topic URL; empty disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Store contains persistent store connection settings.
type Store struct {
	Driver   string `toml:"driver"`
	Path     string `toml:"path"`
	DSN      string `toml:"dsn"`
	MaxConns int    `toml:"max_conns"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for cointist.
//
// Configuration sections by subsystem:
//   - Paths: artifact store, logs, snapshot, export target, slug map, API bind
//   - Worker: extraction worker command line
//   - Aggregator: run-boundary window and polling
//   - Resolver: per-tier time bounds and fuzzy thresholds
//   - Export: backfill populate step
//   - Notifications: ntfy run and export notices
//   - Store: persistent store driver and connection
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Worker        Worker        `toml:"worker"`
	Aggregator    Aggregator    `toml:"aggregator"`
	Resolver      Resolver      `toml:"resolver"`
	Export        Export        `toml:"export"`
	Notifications Notifications `toml:"notifications"`
	Store         Store         `toml:"store"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/cointist/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		if err != nil {
			if os.IsNotExist(err) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		if info.IsDir() {
			return "", false, fmt.Errorf("config path %q is a directory", expanded)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cointist.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.ArtifactDir,
		c.Paths.LogDir,
		c.WorkerLogDir(),
		filepath.Dir(c.Paths.ExportFile),
		filepath.Dir(c.Paths.SlugMapFile),
	}
	if c.Store.Driver == StoreDriverSQLite {
		dirs = append(dirs, filepath.Dir(c.Store.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WorkerLogDir returns the directory receiving per-item worker logs.
func (c *Config) WorkerLogDir() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "workers")
}

// RunWindow returns the run-boundary window used by the aggregator.
func (c *Config) RunWindow() time.Duration {
	return time.Duration(c.Aggregator.WindowSeconds) * time.Second
}

// PollInterval returns the fixed aggregator polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Aggregator.PollIntervalMillis) * time.Millisecond
}

// WaitTimeout returns the default aggregator wait timeout.
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.Aggregator.WaitTimeoutSeconds) * time.Second
}

// LogScanTimeout returns the per-item bound for the log scan tier.
func (c *Config) LogScanTimeout() time.Duration {
	return time.Duration(c.Resolver.LogScanTimeoutMillis) * time.Millisecond
}

// LiveQueryTimeout returns the per-item bound for the live query tier.
func (c *Config) LiveQueryTimeout() time.Duration {
	return time.Duration(c.Resolver.LiveQueryTimeoutMillis) * time.Millisecond
}

// NotifyTimeout bounds a single ntfy request.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// PopulateTimeout bounds the export gate populate step.
func (c *Config) PopulateTimeout() time.Duration {
	return time.Duration(c.Export.PopulateTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
