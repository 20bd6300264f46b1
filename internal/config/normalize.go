package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorker()
	c.normalizeAggregator()
	c.normalizeResolver()
	c.normalizeExport()
	c.normalizeNotifications()
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.artifact_dir", &c.Paths.ArtifactDir, defaultArtifactDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.snapshot_file", &c.Paths.SnapshotFile, defaultSnapshotFile},
		{"paths.export_file", &c.Paths.ExportFile, defaultExportFile},
		{"paths.slug_map_file", &c.Paths.SlugMapFile, defaultSlugMapFile},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("COINTIST_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeWorker() {
	c.Worker.Command = strings.TrimSpace(c.Worker.Command)
	if c.Worker.Command == "" {
		if value, ok := os.LookupEnv("COINTIST_WORKER_COMMAND"); ok {
			c.Worker.Command = strings.TrimSpace(value)
		}
	}
	env := make([]string, 0, len(c.Worker.Env))
	for _, entry := range c.Worker.Env {
		entry = strings.TrimSpace(entry)
		if entry == "" || !strings.Contains(entry, "=") {
			continue
		}
		env = append(env, entry)
	}
	c.Worker.Env = env
}

func (c *Config) normalizeAggregator() {
	if c.Aggregator.WindowSeconds <= 0 {
		c.Aggregator.WindowSeconds = defaultWindowSeconds
	}
	if c.Aggregator.PollIntervalMillis <= 0 {
		c.Aggregator.PollIntervalMillis = defaultPollIntervalMillis
	}
	if c.Aggregator.WaitTimeoutSeconds <= 0 {
		c.Aggregator.WaitTimeoutSeconds = defaultWaitTimeoutSeconds
	}
}

func (c *Config) normalizeResolver() {
	if c.Resolver.LogScanTimeoutMillis <= 0 {
		c.Resolver.LogScanTimeoutMillis = defaultLogScanTimeoutMillis
	}
	if c.Resolver.LiveQueryTimeoutMillis <= 0 {
		c.Resolver.LiveQueryTimeoutMillis = defaultLiveQueryTimeoutMillis
	}
	if c.Resolver.Concurrency <= 0 {
		c.Resolver.Concurrency = defaultResolverConcurrency
	}
	if c.Resolver.FuzzyMinOverlap == 0 {
		c.Resolver.FuzzyMinOverlap = defaultFuzzyMinOverlap
	}
	if c.Resolver.FuzzyShortOverlap == 0 {
		c.Resolver.FuzzyShortOverlap = defaultFuzzyShortOverlap
	}
	if c.Resolver.FuzzyShortTokens == 0 {
		c.Resolver.FuzzyShortTokens = defaultFuzzyShortTokens
	}
	if c.Resolver.FuzzyMinShared == 0 {
		c.Resolver.FuzzyMinShared = defaultFuzzyMinShared
	}
}

func (c *Config) normalizeExport() {
	c.Export.PopulateCommand = strings.TrimSpace(c.Export.PopulateCommand)
	if c.Export.PopulateTimeoutSeconds <= 0 {
		c.Export.PopulateTimeoutSeconds = defaultPopulateTimeoutSeconds
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimRight(strings.TrimSpace(c.Notifications.NtfyTopic), "/")
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeoutSeconds
	}
}

func (c *Config) normalizeStore() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "", "sqlite3":
		c.Store.Driver = StoreDriverSQLite
	case "pg", "postgresql", "pgx":
		c.Store.Driver = StoreDriverPostgres
	}
	c.Store.DSN = strings.TrimSpace(c.Store.DSN)
	if c.Store.DSN == "" {
		if value, ok := os.LookupEnv("COINTIST_STORE_DSN"); ok {
			c.Store.DSN = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		c.Store.Path = defaultStorePath
	}
	var err error
	if c.Store.Path, err = expandPath(strings.TrimSpace(c.Store.Path)); err != nil {
		return fmt.Errorf("store.path: %w", err)
	}
	if c.Store.MaxConns <= 0 {
		c.Store.MaxConns = defaultStoreMaxConns
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
