// Package artifacts implements the shared artifact store that pipeline
// stages communicate through.
//
// Every artifact is a uniquely named file of the form
// prefix-<epoch-ms>[-suffix].ext. Writers only create new files, so the store
// needs no locking; readers treat each listing as a point-in-time snapshot and
// must tolerate files that are partially written or vanish between List and
// Read. The Store interface keeps aggregation and resolution independent of
// the directory layout so another backend can be substituted later.
package artifacts
