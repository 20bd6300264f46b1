// Package pipeline wires configuration into the coordination components:
// artifact and log stores, the worker launcher, run registrar, summary
// aggregator, identity resolver, persistent catalog and export gate. It is
// the composition root shared by the CLI commands and the API server.
package pipeline
