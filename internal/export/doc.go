// Package export is the fail-closed gate between aggregated worker output and
// the canonical final artifact.
//
// Every item must carry a persistent identifier. When some do not, the gate
// runs a best-effort populate step, reloads the slug map and patches items by
// slug, then validates again. A batch that still has unresolved items is
// rejected as a whole with a *RejectionError listing the offending indexes;
// nothing is written. Accepted batches are written atomically under a file
// lock and their slug to id pairs are recorded for later backfills.
package export
