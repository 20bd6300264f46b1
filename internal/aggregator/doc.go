// Package aggregator discovers worker summaries in the artifact store, decides
// which of them belong to the current run, and merges their items into a
// deduplicated view.
//
// The store may hold summaries from several runs at once. The current run's
// upper bound comes from the terminal marker a worker prints into its log
// ("final summary: <path>") when one can be found, otherwise from the newest
// summary filename. Everything older than the configured window below that
// bound is ignored. Absence is never an error: an unreadable or empty store
// yields Found=false with a human-readable message.
package aggregator
