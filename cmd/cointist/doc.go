// Package main hosts the cointist CLI entrypoint and command graph.
//
// The Cobra command tree exposes each coordination stage directly: run
// registration and inspection, summary aggregation, identity resolution,
// export, catalog maintenance and artifact cleanup. The serve command runs
// the same components behind the HTTP API. Configuration loading and logger
// setup are centralized in commandContext so subcommands only deal with
// input parsing and output rendering.
package main
