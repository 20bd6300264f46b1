// Package catalog is the client for the persistent article store that owns
// authoritative identifiers.
//
// Two backends implement Directory: SQLite through modernc.org/sqlite for
// single-host deployments and tests, and PostgreSQL through pgx for shared
// deployments. Lookups report absence with a false flag rather than an error.
package catalog
