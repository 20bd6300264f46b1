// Package services defines shared utilities consumed by the registrar,
// aggregator, resolver, and export gate.
//
// Key responsibilities:
//   - Context helpers that stamp run tokens, item slugs, resolution tiers, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent classifications (retry later vs caller must act).
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across components.
package services
