// Package notifications delivers pipeline events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Run registration and export outcomes are
// the events the pipeline emits; EventTest backs the `cointist notify test`
// command.
package notifications
