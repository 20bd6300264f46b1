// Package resolver maps ephemeral items to authoritative persistent
// identifiers.
//
// Resolution runs a cascade of strategies in increasing cost order:
//
//   - directMap: exact slug matches in summary artifacts from any run
//   - fuzzyTitle: token overlap between titles in the same artifacts
//   - logScan: "persisted as" records in worker logs, bounded per item
//   - liveQuery: the persistent catalog, bounded per item and rate limited
//
// Every tier runs. When tiers disagree the answer backed by the newest
// evidence wins; an answer with no timestamp replaces a timestamped one.
// Tier failures are logged and count as "no candidate".
package resolver
