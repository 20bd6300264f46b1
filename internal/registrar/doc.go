// Package registrar registers pipeline runs: it validates a requested
// selection against the cached snapshot, records the selection manifest and
// invocation, and dispatches one worker per selected item without waiting for
// any of them.
package registrar
