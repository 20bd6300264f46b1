// Package logs tails worker log files for the CLI and the HTTP API.
//
// A negative offset returns the last N complete lines; a non-negative offset
// resumes from a previous call. A trailing line without a newline is left for
// the next call because the worker may still be writing it. Follow mode waits
// for new lines, woken by fsnotify where available and by a short poll
// otherwise.
package logs
