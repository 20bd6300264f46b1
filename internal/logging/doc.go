// Package logging assembles structured slog loggers and formatting helpers used
// across cointist components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so registrar, aggregator, and
// resolver code can automatically tag log lines with run tokens, item slugs,
// resolution tiers, and correlation IDs. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging
