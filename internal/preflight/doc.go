// Package preflight provides readiness checks for the directories, worker
// command and notification endpoint cointist depends on.
//
// These checks run in two contexts:
//   - `cointist serve` calls RunAll at startup and logs every failing check.
//   - The CLI "cointist status" command prints each result as a status line.
package preflight
