// Package model defines the records exchanged through the artifact store:
// pipeline items, selection manifests, invocation records, worker summaries
// and identity resolution outcomes.
//
// Items are decoded leniently. Unknown JSON fields survive a decode/encode
// round trip so that workers and downstream consumers can attach data this
// package does not know about, and identifiers written as numeric strings are
// coerced to numbers on decode.
package model
