package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateTimings(); err != nil {
		return err
	}
	if err := c.validateResolver(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.Command == "" {
		// Registration reports the missing command; other commands still work.
		return nil
	}
	if _, err := shellquote.Split(c.Worker.Command); err != nil {
		return fmt.Errorf("worker.command: %w", err)
	}
	return nil
}

func (c *Config) validateTimings() error {
	return ensurePositiveMap(map[string]int{
		"aggregator.window_seconds":             c.Aggregator.WindowSeconds,
		"aggregator.poll_interval_ms":           c.Aggregator.PollIntervalMillis,
		"aggregator.wait_timeout_seconds":       c.Aggregator.WaitTimeoutSeconds,
		"resolver.log_scan_timeout_ms":          c.Resolver.LogScanTimeoutMillis,
		"resolver.live_query_timeout_ms":        c.Resolver.LiveQueryTimeoutMillis,
		"resolver.concurrency":                  c.Resolver.Concurrency,
		"export.populate_timeout_seconds":       c.Export.PopulateTimeoutSeconds,
		"notifications.request_timeout_seconds": c.Notifications.RequestTimeoutSeconds,
	})
}

func (c *Config) validateResolver() error {
	if c.Resolver.LiveQueryRPS < 0 {
		return errors.New("resolver.live_query_rps must be >= 0 (0 disables the limit)")
	}
	for name, value := range map[string]float64{
		"resolver.fuzzy_min_overlap":            c.Resolver.FuzzyMinOverlap,
		"resolver.fuzzy_short_overlap":          c.Resolver.FuzzyShortOverlap,
	} {
		if value <= 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if c.Resolver.FuzzyShortOverlap > c.Resolver.FuzzyMinOverlap {
		return errors.New("resolver.fuzzy_short_overlap must not exceed resolver.fuzzy_min_overlap")
	}
	if c.Resolver.FuzzyShortTokens < 0 || c.Resolver.FuzzyMinShared < 0 {
		return errors.New("resolver.fuzzy_short_tokens and resolver.fuzzy_min_shared must be >= 0")
	}
	return nil
}

func (c *Config) validateExport() error {
	if c.Export.PopulateCommand == "" {
		return nil
	}
	if _, err := shellquote.Split(c.Export.PopulateCommand); err != nil {
		return fmt.Errorf("export.populate_command: %w", err)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case StoreDriverSQLite:
		if strings.TrimSpace(c.Store.Path) == "" {
			return errors.New("store.path must be set when store.driver is sqlite")
		}
	case StoreDriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn must be set when store.driver is postgres (or set COINTIST_STORE_DSN)")
		}
	default:
		return fmt.Errorf("store.driver: unsupported value %q", c.Store.Driver)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
