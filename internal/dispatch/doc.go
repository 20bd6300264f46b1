// Package dispatch launches extraction workers.
//
// Launching is fire-and-forget: Launch starts the process, wires its stdout
// and stderr to a per-item log file and returns a Handle immediately. There
// is no Wait on the interface. The process is reaped in the background and
// callers learn about its outcome only through the artifacts and log it
// leaves behind.
package dispatch
