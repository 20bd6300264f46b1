// Package config loads, normalizes, and validates cointist configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// COINTIST_STORE_DSN. The Config type centralizes every knob the registrar,
// aggregator, resolver, and export gate need so the artifact directory, log
// directory, and persistent store are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
