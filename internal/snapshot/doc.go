// Package snapshot reads the cached selection snapshot: the externally
// maintained list of candidate items a run may select from.
package snapshot
