// Package api serves the pipeline over HTTP.
//
// # Endpoints
//
//	POST /api/runs                register a run and dispatch workers
//	GET  /api/runs/<token>        invocation record with worker liveness
//	GET  /api/runs/<token>/logs   tail a worker log (?slug=&offset=&limit=&wait=<s>)
//	GET  /api/summary             merged summary of the current run (?since=<ms>&wait=<s>)
//	POST /api/resolve             backfill identifiers for a batch
//	POST /api/export              validate and write the final artifact
//	GET  /api/status              directories and artifact counts
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Errors are {"error": "..."} with a status
// derived from the services error kind; export rejections answer 422 with the
// offending indexes. Every response carries an X-Request-ID header that is
// also attached to the request context for logging.
package api
